package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/models"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	deleted   []string
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if u, ok := m.users[id]; ok {
		u.Active = false
	}
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestCreateUserSuperuserBecomesAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Username:  "Root",
		Name:      "Root User",
		Role:      models.RoleMember,
		Superuser: true,
		Active:    true,
		Password:  "secret123",
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "root", user.Username)
	assert.Equal(t, 0, user.Points)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Username: "alice"})
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Username: "alice",
		Name:     "Alice",
		Role:     models.RoleMember,
		Password: "secret123",
	}, "admin-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestProfileReturnsTotals(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Username: "alice", Name: "Alice Doe", Points: 45, Active: true})
	svc := NewUserService(repo, nil, nil)

	profile, err := svc.Profile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "Alice Doe", profile.Name)
	assert.Equal(t, 45, profile.TotalPoints)
}

func TestUpdateUserDoesNotTouchPoints(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Username: "alice", Name: "Alice", Role: models.RoleMember, Points: 30, Active: true})
	svc := NewUserService(repo, nil, nil)

	inactive := false
	updated, err := svc.Update(context.Background(), "user-1", UpdateUserRequest{
		Name:   "Alice D.",
		Role:   models.RoleAdmin,
		Active: &inactive,
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.False(t, updated.Active)
	assert.Equal(t, 30, updated.Points)
}

func TestDeleteUserSoftDeletes(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Username: "alice", Active: true})
	svc := NewUserService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "user-1", "admin-1", models.LoginRequest{}))
	assert.Contains(t, repo.deleted, "user-1")
	assert.False(t, repo.users["user-1"].Active)

	err := svc.Delete(context.Background(), "missing", "admin-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
