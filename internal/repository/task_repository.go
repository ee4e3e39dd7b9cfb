package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/appquest/rewards-api/internal/models"
)

// TaskRepository provides database access to the task registry.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new instance of TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task definition.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tasks (id, name, description, points, app_link, created_at) VALUES (:id, :name, :description, :points, :app_link, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// List returns all tasks ordered by creation time.
func (r *TaskRepository) List(ctx context.Context) ([]models.Task, error) {
	const query = `SELECT id, name, description, points, app_link, created_at FROM tasks ORDER BY created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindByID returns a task by identifier.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT id, name, description, points, app_link, created_at FROM tasks WHERE id = $1 LIMIT 1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find task by id: %w", err)
	}
	return &task, nil
}

// Update rewrites the mutable attributes of a task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	const query = `UPDATE tasks SET name = :name, description = :description, points = :points, app_link = :app_link WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Delete removes a task and its submissions cascade at the DB level.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// CompletedForUser returns the distinct tasks for which the user has at
// least one approved submission.
func (r *TaskRepository) CompletedForUser(ctx context.Context, userID string) ([]models.Task, error) {
	const query = `SELECT DISTINCT t.id, t.name, t.description, t.points, t.app_link, t.created_at
FROM tasks t
JOIN submissions s ON s.task_id = t.id
WHERE s.user_id = $1 AND s.approved = TRUE
ORDER BY t.created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("completed tasks for user: %w", err)
	}
	return tasks, nil
}

// PendingForUser returns tasks with zero submissions from the user,
// pending or approved alike.
func (r *TaskRepository) PendingForUser(ctx context.Context, userID string) ([]models.Task, error) {
	const query = `SELECT t.id, t.name, t.description, t.points, t.app_link, t.created_at
FROM tasks t
WHERE NOT EXISTS (SELECT 1 FROM submissions s WHERE s.task_id = t.id AND s.user_id = $1)
ORDER BY t.created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("pending tasks for user: %w", err)
	}
	return tasks, nil
}
