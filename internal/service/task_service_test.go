package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/models"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

type mockTaskRepo struct {
	tasks    []models.Task
	listHits int
}

func (m *mockTaskRepo) Create(ctx context.Context, task *models.Task) error {
	task.ID = "task-new"
	m.tasks = append(m.tasks, *task)
	return nil
}

func (m *mockTaskRepo) List(ctx context.Context) ([]models.Task, error) {
	m.listHits++
	return m.tasks, nil
}

func (m *mockTaskRepo) FindByID(ctx context.Context, id string) (*models.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &m.tasks[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTaskRepo) Update(ctx context.Context, task *models.Task) error {
	for i := range m.tasks {
		if m.tasks[i].ID == task.ID {
			m.tasks[i] = *task
		}
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.tasks = kept
	return nil
}

type mockTaskCache struct {
	entries map[string][]byte
	deletes []string
}

func (m *mockTaskCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *mockTaskCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = data
	return nil
}

func (m *mockTaskCache) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		delete(m.entries, key)
		m.deletes = append(m.deletes, key)
	}
}

func TestTaskListCachesResult(t *testing.T) {
	repo := &mockTaskRepo{tasks: []models.Task{{ID: "task-1", Name: "Install app", Points: 10}}}
	cache := &mockTaskCache{}
	svc := NewTaskService(repo, cache, time.Minute, nil, nil, nil)

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, repo.listHits)

	second, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, repo.listHits, "second list should be served from cache")
}

func TestTaskCreateInvalidatesCache(t *testing.T) {
	repo := &mockTaskRepo{}
	cache := &mockTaskCache{}
	svc := NewTaskService(repo, cache, time.Minute, nil, nil, nil)

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	created, err := svc.Create(context.Background(), CreateTaskRequest{Name: "Leave a review", Description: "Write a store review", Points: 20})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, cache.deletes, taskListCacheKey)

	tasks, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, repo.listHits)
}

func TestTaskCreateValidation(t *testing.T) {
	svc := NewTaskService(&mockTaskRepo{}, nil, time.Minute, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateTaskRequest{Name: "", Description: "", Points: -1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTaskGetNotFound(t *testing.T) {
	svc := NewTaskService(&mockTaskRepo{}, nil, time.Minute, nil, nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTaskUpdateAndDeleteInvalidate(t *testing.T) {
	repo := &mockTaskRepo{tasks: []models.Task{{ID: "task-1", Name: "Install app", Description: "Install it", Points: 10}}}
	cache := &mockTaskCache{}
	svc := NewTaskService(repo, cache, time.Minute, nil, nil, nil)

	updated, err := svc.Update(context.Background(), "task-1", CreateTaskRequest{Name: "Install app", Description: "Install it", Points: 25})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Points)

	require.NoError(t, svc.Delete(context.Background(), "task-1"))
	assert.Len(t, cache.deletes, 2)
}
