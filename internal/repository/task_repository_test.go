package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/models"
)

func TestCreateTask(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec("INSERT INTO tasks").WillReturnResult(sqlmock.NewResult(1, 1))

	task := &models.Task{Name: "Install app", Description: "Install and open the app", Points: 50}
	err := repo.Create(context.Background(), task)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTasks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "points", "app_link", "created_at"}).
		AddRow("t1", "Install app", "Install and open the app", 50, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, points, app_link, created_at FROM tasks ORDER BY created_at DESC")).
		WillReturnRows(rows)

	tasks, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 50, tasks[0].Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletedForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "points", "app_link", "created_at"}).
		AddRow("t1", "Install app", "Install and open the app", 50, nil, now)
	mock.ExpectQuery("SELECT DISTINCT t.id, t.name").WithArgs("u1").WillReturnRows(rows)

	tasks, err := repo.CompletedForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingForUserExcludesAnySubmission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "points", "app_link", "created_at"}).
		AddRow("t2", "Share link", "Share with a friend", 20, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE NOT EXISTS (SELECT 1 FROM submissions s WHERE s.task_id = t.id AND s.user_id = $1)")).
		WithArgs("u1").
		WillReturnRows(rows)

	tasks, err := repo.PendingForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t2", tasks[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
