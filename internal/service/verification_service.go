package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/appquest/rewards-api/internal/models"
	"github.com/appquest/rewards-api/internal/repository"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

// verificationLedger is the transactional primitive the workflow runs on.
type verificationLedger interface {
	Approve(ctx context.Context, id string, verifiedAt time.Time) (*models.Submission, error)
}

type verificationAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// VerificationService is the single authority permitted to flip a
// submission's approval flag and credit points. Every HTTP surface that
// can approve a submission routes through Verify.
type VerificationService struct {
	ledger  verificationLedger
	auditor verificationAuditor
	metrics *MetricsService
	logger  *zap.Logger
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(ledger verificationLedger, auditor verificationAuditor, metrics *MetricsService, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{ledger: ledger, auditor: auditor, metrics: metrics, logger: logger}
}

// Verify approves a submission and credits the task's point value to
// its owner exactly once. The approve-and-credit pair commits or rolls
// back together inside the ledger; a repeat call fails with
// ErrAlreadyVerified, which makes the operation safe to retry.
func (s *VerificationService) Verify(ctx context.Context, submissionID string, actor *models.JWTClaims, meta models.LoginRequest) (*models.Submission, error) {
	if !actor.Admin() {
		s.metrics.RecordVerification("denied")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can verify submissions")
	}

	submission, err := s.ledger.Approve(ctx, submissionID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyApproved):
			s.metrics.RecordVerification("already_verified")
			return nil, appErrors.Clone(appErrors.ErrAlreadyVerified, "submission already verified")
		case errors.Is(err, sql.ErrNoRows):
			s.metrics.RecordVerification("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		default:
			s.metrics.RecordVerification("error")
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify submission")
		}
	}

	s.metrics.RecordVerification("approved")
	s.logger.Info("submission verified",
		zap.String("submission_id", submission.ID),
		zap.String("user_id", submission.UserID),
		zap.String("task_id", submission.TaskID),
		zap.String("verified_by", actor.UserID),
	)

	if s.auditor != nil {
		payload, _ := json.Marshal(map[string]interface{}{"approved": true, "user_id": submission.UserID, "task_id": submission.TaskID})
		if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionVerify,
			Resource:   "submissions",
			ResourceID: &submission.ID,
			NewValues:  payload,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record verification audit log", zap.Error(err))
		}
	}

	return submission, nil
}
