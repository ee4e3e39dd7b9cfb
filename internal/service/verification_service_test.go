package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/models"
	"github.com/appquest/rewards-api/internal/repository"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
)

// mockLedger mimics the transactional approve-and-credit primitive:
// the first approval of a submission credits its owner, repeats fail.
type mockLedger struct {
	mu          sync.Mutex
	submissions map[string]*models.Submission
	taskPoints  map[string]int
	balances    map[string]int
	approveErr  error
	approvals   int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		submissions: make(map[string]*models.Submission),
		taskPoints:  make(map[string]int),
		balances:    make(map[string]int),
	}
}

func (m *mockLedger) add(sub *models.Submission, points int) {
	m.submissions[sub.ID] = sub
	m.taskPoints[sub.TaskID] = points
}

func (m *mockLedger) Approve(ctx context.Context, id string, verifiedAt time.Time) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.approveErr != nil {
		return nil, m.approveErr
	}
	sub, ok := m.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if sub.Approved {
		return nil, repository.ErrAlreadyApproved
	}
	sub.Approved = true
	sub.VerifiedAt = &verifiedAt
	m.balances[sub.UserID] += m.taskPoints[sub.TaskID]
	m.approvals++

	copied := *sub
	return &copied, nil
}

type mockAuditor struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Username: "admin", Role: models.RoleAdmin, IsAdmin: true}
}

func memberClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Username: "member", Role: models.RoleMember}
}

func TestVerifyCreditsPointsOnce(t *testing.T) {
	ledger := newMockLedger()
	ledger.add(&models.Submission{ID: "sub-1", UserID: "user-1", TaskID: "task-1"}, 15)
	auditor := &mockAuditor{}
	svc := NewVerificationService(ledger, auditor, nil, nil)

	sub, err := svc.Verify(context.Background(), "sub-1", adminClaims(), models.LoginRequest{IP: "127.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.Approved)
	require.NotNil(t, sub.VerifiedAt)
	assert.Equal(t, 15, ledger.balances["user-1"])
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionVerify, auditor.logs[0].Action)
}

func TestVerifySecondCallFailsWithoutCredit(t *testing.T) {
	ledger := newMockLedger()
	ledger.add(&models.Submission{ID: "sub-1", UserID: "user-1", TaskID: "task-1"}, 15)
	svc := NewVerificationService(ledger, nil, nil, nil)

	_, err := svc.Verify(context.Background(), "sub-1", adminClaims(), models.LoginRequest{})
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), "sub-1", adminClaims(), models.LoginRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlreadyVerified.Code, appErr.Code)
	assert.Equal(t, 15, ledger.balances["user-1"])
	assert.Equal(t, 1, ledger.approvals)
}

func TestVerifyConcurrentCallsCreditOnce(t *testing.T) {
	ledger := newMockLedger()
	ledger.add(&models.Submission{ID: "sub-1", UserID: "user-1", TaskID: "task-1"}, 10)
	svc := NewVerificationService(ledger, nil, nil, nil)

	const workers = 16
	var wg sync.WaitGroup
	var okCount, dupCount sync.Map
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Verify(context.Background(), "sub-1", adminClaims(), models.LoginRequest{})
			if err == nil {
				okCount.Store(i, true)
			} else {
				dupCount.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	successes := 0
	okCount.Range(func(_, _ interface{}) bool { successes++; return true })
	assert.Equal(t, 1, successes)
	assert.Equal(t, 10, ledger.balances["user-1"])
	assert.Equal(t, 1, ledger.approvals)
}

func TestVerifyDistinctSubmissionsAccumulate(t *testing.T) {
	ledger := newMockLedger()
	ledger.add(&models.Submission{ID: "sub-1", UserID: "user-1", TaskID: "task-1"}, 10)
	ledger.add(&models.Submission{ID: "sub-2", UserID: "user-1", TaskID: "task-2"}, 20)
	svc := NewVerificationService(ledger, nil, nil, nil)

	var wg sync.WaitGroup
	for _, id := range []string{"sub-1", "sub-2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Verify(context.Background(), id, adminClaims(), models.LoginRequest{})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 30, ledger.balances["user-1"])
}

func TestVerifyRequiresAdmin(t *testing.T) {
	ledger := newMockLedger()
	ledger.add(&models.Submission{ID: "sub-1", UserID: "user-1", TaskID: "task-1"}, 15)
	svc := NewVerificationService(ledger, nil, nil, nil)

	_, err := svc.Verify(context.Background(), "sub-1", memberClaims(), models.LoginRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.False(t, ledger.submissions["sub-1"].Approved)
	assert.Equal(t, 0, ledger.balances["user-1"])
}

func TestVerifyUnknownSubmission(t *testing.T) {
	svc := NewVerificationService(newMockLedger(), nil, nil, nil)

	_, err := svc.Verify(context.Background(), "missing", adminClaims(), models.LoginRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestVerifyLedgerFailure(t *testing.T) {
	ledger := newMockLedger()
	ledger.approveErr = errors.New("connection reset")
	svc := NewVerificationService(ledger, nil, nil, nil)

	_, err := svc.Verify(context.Background(), "sub-1", adminClaims(), models.LoginRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}
