package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/appquest/rewards-api/internal/models"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
	"github.com/appquest/rewards-api/pkg/export"
)

// ReportFormat identifies a supported export format.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type leaderboardSource interface {
	Leaderboard(ctx context.Context) ([]models.User, error)
}

// Report is a rendered export with its content type and filename.
type Report struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ReportService renders leaderboard exports.
type ReportService struct {
	users  leaderboardSource
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

func NewReportService(users leaderboardSource, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		users:  users,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Leaderboard renders active users ranked by points in the requested format.
func (s *ReportService) Leaderboard(ctx context.Context, format ReportFormat) (*Report, error) {
	users, err := s.users.Leaderboard(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
	}

	table := export.Table{
		Columns: []string{"Rank", "Username", "Name", "Points"},
		Rows:    make([][]string, 0, len(users)),
	}
	for i, u := range users {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			u.Username,
			u.Name,
			strconv.Itoa(u.Points),
		})
	}

	switch format {
	case ReportFormatPDF:
		data, err := s.pdf.Render(table, "Leaderboard")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &Report{Data: data, ContentType: "application/pdf", Filename: "leaderboard.pdf"}, nil
	case ReportFormatCSV, "":
		data, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &Report{Data: data, ContentType: "text/csv", Filename: "leaderboard.csv"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
}
