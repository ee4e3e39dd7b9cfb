package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "name", "password_hash", "role", "points", "active", "last_login", "created_at", "updated_at"}).
		AddRow("1", "alice", "Alice", "hash", string(models.RoleMember), 30, true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, name, password_hash, role, points, active, last_login, created_at, updated_at FROM users WHERE username = $1 LIMIT 1")).
		WithArgs("alice").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, 30, user.Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "username", "name", "password_hash", "role", "points", "active", "last_login", "created_at", "updated_at"}).
		AddRow("1", "alice", "Alice", "hash", string(models.RoleAdmin), 0, true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, name, password_hash, role, points, active, last_login, created_at, updated_at FROM users WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1")).WillReturnRows(countRows)

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "name", "password_hash", "role", "points", "active", "last_login", "created_at", "updated_at"}).
		AddRow("1", "alice", "Alice", "hash", string(models.RoleMember), 90, true, now, now, now).
		AddRow("2", "bob", "Bob", "hash", string(models.RoleMember), 40, true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, name, password_hash, role, points, active, last_login, created_at, updated_at FROM users WHERE active = TRUE ORDER BY points DESC, username ASC")).
		WillReturnRows(rows)

	users, err := repo.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 90, users[0].Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}
