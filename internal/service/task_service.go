package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/appquest/rewards-api/internal/models"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

const taskListCacheKey = "tasks:list"

type taskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	List(ctx context.Context) ([]models.Task, error)
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

type taskCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// CreateTaskRequest represents payload for creating tasks.
type CreateTaskRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"required"`
	Points      int     `json:"points" validate:"gte=0"`
	AppLink     *string `json:"app_link" validate:"omitempty,url"`
}

// TaskService manages the task registry with a cached listing.
type TaskService struct {
	repo      taskRepository
	cache     taskCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService creates an instance of TaskService. cache may be nil.
func NewTaskService(repo taskRepository, cache taskCache, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{repo: repo, cache: cache, cacheTTL: cacheTTL, metrics: metrics, validator: validate, logger: logger}
}

// List returns all tasks, served from cache when fresh.
func (s *TaskService) List(ctx context.Context) ([]models.Task, error) {
	if s.cache != nil {
		var cached []models.Task
		if err := s.cache.Get(ctx, taskListCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("task list cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, taskListCacheKey, tasks, s.cacheTTL); err != nil {
			s.logger.Warn("task list cache write failed", zap.Error(err))
		}
	}

	return tasks, nil
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}

// Create registers a new task definition.
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create task payload")
	}

	task := &models.Task{
		Name:        req.Name,
		Description: req.Description,
		Points:      req.Points,
		AppLink:     req.AppLink,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	s.invalidate(ctx)
	return task, nil
}

// Update rewrites a task definition.
func (s *TaskService) Update(ctx context.Context, id string, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update task payload")
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Name = req.Name
	task.Description = req.Description
	task.Points = req.Points
	task.AppLink = req.AppLink

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}

	s.invalidate(ctx)
	return task, nil
}

// Delete removes a task from the registry.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	s.invalidate(ctx)
	return nil
}

func (s *TaskService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Delete(ctx, taskListCacheKey)
	}
}
