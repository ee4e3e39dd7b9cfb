package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appquest/rewards-api/internal/models"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

type submissionLedger interface {
	Create(ctx context.Context, submission *models.Submission) error
	ListByTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error)
}

type submissionTaskRegistry interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	CompletedForUser(ctx context.Context, userID string) ([]models.Task, error)
	PendingForUser(ctx context.Context, userID string) ([]models.Task, error)
}

type screenshotStore interface {
	Save(filename string, data []byte) (string, error)
}

// linkSigner creates signed download tokens for stored screenshots.
// Satisfied by pkg/storage.SignedURLSigner.
type linkSigner interface {
	Generate(submissionID, relPath string) (string, time.Time, error)
}

// SubmissionService manages the submission ledger around the
// verification workflow: creation with screenshot validation and the
// derived per-user task views.
type SubmissionService struct {
	ledger     submissionLedger
	tasks      submissionTaskRegistry
	store      screenshotStore
	signer     linkSigner
	allowedExt map[string]struct{}
	logger     *zap.Logger
}

// NewSubmissionService constructs a SubmissionService. allowedExtensions
// are compared case-insensitively without the leading dot.
func NewSubmissionService(ledger submissionLedger, tasks submissionTaskRegistry, store screenshotStore, signer linkSigner, allowedExtensions []string, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	if len(allowed) == 0 {
		for _, ext := range []string{"png", "jpg", "jpeg"} {
			allowed[ext] = struct{}{}
		}
	}
	return &SubmissionService{ledger: ledger, tasks: tasks, store: store, signer: signer, allowedExt: allowed, logger: logger}
}

// Create validates and stores a screenshot, then records a pending
// submission for the task. The extension check runs before the blob
// store is touched.
func (s *SubmissionService) Create(ctx context.Context, userID, taskID, filename string, data []byte) (*models.Submission, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if _, ok := s.allowedExt[ext]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, "")
	}

	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}

	submission := &models.Submission{
		ID:     uuid.NewString(),
		UserID: userID,
		TaskID: taskID,
	}

	relPath := fmt.Sprintf("submissions/%s.%s", submission.ID, ext)
	stored, err := s.store.Save(relPath, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store screenshot")
	}
	submission.Screenshot = stored

	if err := s.ledger.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}

	s.logger.Info("submission created",
		zap.String("submission_id", submission.ID),
		zap.String("user_id", userID),
		zap.String("task_id", taskID),
	)

	return submission, nil
}

// ListForTask returns every submission for a task with user and task
// metadata plus a signed screenshot URL each.
func (s *SubmissionService) ListForTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error) {
	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}

	items, err := s.ledger.ListByTask(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	for i := range items {
		token, _, err := s.signer.Generate(items[i].ID, items[i].Screenshot)
		if err != nil {
			s.logger.Warn("failed to sign screenshot url", zap.String("submission_id", items[i].ID), zap.Error(err))
			continue
		}
		items[i].ScreenshotURL = "files/" + token
	}

	return items, nil
}

// CompletedTasks returns the tasks for which the user has at least one
// approved submission, deduplicated by task.
func (s *SubmissionService) CompletedTasks(ctx context.Context, userID string) ([]models.Task, error) {
	tasks, err := s.tasks.CompletedForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed tasks")
	}
	return tasks, nil
}

// PendingTasks returns tasks the user has not submitted anything for.
// A pending (unapproved) submission already removes the task from this
// list.
func (s *SubmissionService) PendingTasks(ctx context.Context, userID string) ([]models.Task, error) {
	tasks, err := s.tasks.PendingForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending tasks")
	}
	return tasks, nil
}
