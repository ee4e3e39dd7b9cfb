package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/appquest/rewards-api/internal/models"
)

// ErrAlreadyApproved reports that an approval was attempted on a
// submission whose flag is already set. Returned from inside the
// verification transaction so callers can map it without re-reading.
var ErrAlreadyApproved = errors.New("submission already approved")

// SubmissionRepository is the persistent ledger of submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new pending submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, user_id, task_id, screenshot, approved, verified_at, submitted_at) VALUES (:id, :user_id, :task_id, :screenshot, :approved, :verified_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, user_id, task_id, screenshot, approved, verified_at, submitted_at FROM submissions WHERE id = $1 LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// ListByTask returns all submissions for a task joined with user and
// task metadata for review listings.
func (r *SubmissionRepository) ListByTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.user_id, u.username, u.name AS user_name, s.task_id, t.name AS task_name, t.points AS task_points, s.screenshot, s.approved, s.verified_at, s.submitted_at
FROM submissions s
JOIN users u ON u.id = s.user_id
JOIN tasks t ON t.id = s.task_id
WHERE s.task_id = $1
ORDER BY s.submitted_at DESC`
	var items []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &items, query, taskID); err != nil {
		return nil, fmt.Errorf("list submissions by task: %w", err)
	}
	return items, nil
}

// approvalRow is the locked read inside the verification transaction.
type approvalRow struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	TaskID      string     `db:"task_id"`
	Screenshot  string     `db:"screenshot"`
	Approved    bool       `db:"approved"`
	VerifiedAt  *time.Time `db:"verified_at"`
	SubmittedAt time.Time  `db:"submitted_at"`
	TaskPoints  int        `db:"task_points"`
}

// Approve flips the approval flag and credits the task's point value to
// the submitting user as one atomic unit. The submission row is locked
// for the duration of the transaction so a concurrent approval of the
// same submission observes the committed flag and fails with
// ErrAlreadyApproved. The point credit is an in-database increment, so
// concurrent approvals of different submissions owned by the same user
// cannot lose updates.
func (r *SubmissionRepository) Approve(ctx context.Context, id string, verifiedAt time.Time) (sub *models.Submission, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row approvalRow
	const selectQuery = `SELECT s.id, s.user_id, s.task_id, s.screenshot, s.approved, s.verified_at, s.submitted_at, t.points AS task_points
FROM submissions s
JOIN tasks t ON t.id = s.task_id
WHERE s.id = $1
FOR UPDATE OF s`
	if err = tx.GetContext(ctx, &row, selectQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}

	if row.Approved {
		err = ErrAlreadyApproved
		return nil, err
	}

	const approveQuery = `UPDATE submissions SET approved = TRUE, verified_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, approveQuery, id, verifiedAt); err != nil {
		return nil, fmt.Errorf("approve submission: %w", err)
	}

	const creditQuery = `UPDATE users SET points = points + $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, creditQuery, row.UserID, row.TaskPoints, verifiedAt); err != nil {
		return nil, fmt.Errorf("credit points: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}

	return &models.Submission{
		ID:          row.ID,
		UserID:      row.UserID,
		TaskID:      row.TaskID,
		Screenshot:  row.Screenshot,
		Approved:    true,
		VerifiedAt:  &verifiedAt,
		SubmittedAt: row.SubmittedAt,
	}, nil
}
