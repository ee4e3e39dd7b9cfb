package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/models"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

type mockLeaderboardSource struct {
	users []models.User
	err   error
}

func (m *mockLeaderboardSource) Leaderboard(ctx context.Context) ([]models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

func TestLeaderboardCSV(t *testing.T) {
	source := &mockLeaderboardSource{users: []models.User{
		{Username: "alice", Name: "Alice Doe", Points: 50},
		{Username: "bob", Name: "Bob Roe", Points: 20},
	}}
	svc := NewReportService(source, nil)

	report, err := svc.Leaderboard(context.Background(), ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", report.ContentType)
	assert.Equal(t, "leaderboard.csv", report.Filename)

	lines := strings.Split(strings.TrimSpace(string(report.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Rank,Username,Name,Points", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "1,alice,Alice Doe,50")
	assert.Contains(t, lines[2], "2,bob,Bob Roe,20")
}

func TestLeaderboardPDF(t *testing.T) {
	source := &mockLeaderboardSource{users: []models.User{{Username: "alice", Name: "Alice Doe", Points: 50}}}
	svc := NewReportService(source, nil)

	report, err := svc.Leaderboard(context.Background(), ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, strings.HasPrefix(string(report.Data), "%PDF"))
}

func TestLeaderboardUnknownFormat(t *testing.T) {
	svc := NewReportService(&mockLeaderboardSource{}, nil)

	_, err := svc.Leaderboard(context.Background(), ReportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
