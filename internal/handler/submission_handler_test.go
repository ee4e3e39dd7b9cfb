package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appquest/rewards-api/internal/middleware"
	"github.com/appquest/rewards-api/internal/models"
	"github.com/appquest/rewards-api/internal/repository"
	"github.com/appquest/rewards-api/internal/service"
)

type submissionLedgerStub struct {
	created  []*models.Submission
	approved map[string]bool
	details  []models.SubmissionDetail
	points   map[string]int
	balances map[string]int
}

func newSubmissionLedgerStub() *submissionLedgerStub {
	return &submissionLedgerStub{
		approved: make(map[string]bool),
		points:   make(map[string]int),
		balances: make(map[string]int),
	}
}

func (s *submissionLedgerStub) Create(ctx context.Context, submission *models.Submission) error {
	s.created = append(s.created, submission)
	return nil
}

func (s *submissionLedgerStub) ListByTask(ctx context.Context, taskID string) ([]models.SubmissionDetail, error) {
	return s.details, nil
}

func (s *submissionLedgerStub) Approve(ctx context.Context, id string, verifiedAt time.Time) (*models.Submission, error) {
	if _, ok := s.points[id]; !ok {
		return nil, sql.ErrNoRows
	}
	if s.approved[id] {
		return nil, repository.ErrAlreadyApproved
	}
	s.approved[id] = true
	s.balances["owner"] += s.points[id]
	return &models.Submission{ID: id, UserID: "owner", TaskID: "task-1", Approved: true, VerifiedAt: &verifiedAt}, nil
}

type taskRegistryStub struct {
	task *models.Task
}

func (s *taskRegistryStub) FindByID(ctx context.Context, id string) (*models.Task, error) {
	if s.task == nil {
		return nil, sql.ErrNoRows
	}
	return s.task, nil
}

func (s *taskRegistryStub) CompletedForUser(ctx context.Context, userID string) ([]models.Task, error) {
	return nil, nil
}

func (s *taskRegistryStub) PendingForUser(ctx context.Context, userID string) ([]models.Task, error) {
	return nil, nil
}

type screenshotStoreStub struct {
	saved []string
}

func (s *screenshotStoreStub) Save(filename string, data []byte) (string, error) {
	s.saved = append(s.saved, filename)
	return filename, nil
}

type linkSignerStub struct{}

func (linkSignerStub) Generate(submissionID, relPath string) (string, time.Time, error) {
	return "token-" + submissionID, time.Now().Add(time.Hour), nil
}

func newSubmissionTestHandler(ledger *submissionLedgerStub, registry *taskRegistryStub, store *screenshotStoreStub) *SubmissionHandler {
	submissions := service.NewSubmissionService(ledger, registry, store, linkSignerStub{}, nil, nil)
	verification := service.NewVerificationService(ledger, nil, nil, nil)
	return NewSubmissionHandler(submissions, verification, 5<<20)
}

func multipartScreenshot(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("screenshot", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func memberContext(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Username: "alice", Role: models.RoleMember})
}

func adminContext(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Username: "boss", Role: models.RoleAdmin, IsAdmin: true})
}

func TestSubmissionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	store := &screenshotStoreStub{}
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{task: &models.Task{ID: "task-1"}}, store)

	body, contentType := multipartScreenshot(t, "proof.png")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tasks/task-1/submissions", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}
	memberContext(c)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, ledger.created, 1)
	assert.Equal(t, "user-1", ledger.created[0].UserID)
	require.Len(t, store.saved, 1)
}

func TestSubmissionHandlerCreateRejectsExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{task: &models.Task{ID: "task-1"}}, &screenshotStoreStub{})

	body, contentType := multipartScreenshot(t, "proof.gif")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tasks/task-1/submissions", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}
	memberContext(c)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ledger.created)
}

func TestSubmissionHandlerVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	ledger.points["sub-1"] = 15
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{}, &screenshotStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/submissions/sub-1/verify", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	adminContext(c)

	handler.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 15, ledger.balances["owner"])
}

func TestSubmissionHandlerVerifyTwiceFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	ledger.points["sub-1"] = 15
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{}, &screenshotStoreStub{})

	for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req, _ := http.NewRequest(http.MethodPatch, "/submissions/sub-1/verify", nil)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
		adminContext(c)

		handler.Verify(c)
		require.Equal(t, want, w.Code, "call %d", i+1)
	}
	assert.Equal(t, 15, ledger.balances["owner"])
}

func TestSubmissionHandlerVerifyForbiddenForMembers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	ledger.points["sub-1"] = 15
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{}, &screenshotStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/submissions/sub-1/verify", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	memberContext(c)

	handler.Verify(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, ledger.approved["sub-1"])
	assert.Equal(t, 0, ledger.balances["owner"])
}

func TestSubmissionHandlerUpdateRejectsRevocation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	ledger.points["sub-1"] = 15
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{}, &screenshotStoreStub{})

	payload, _ := json.Marshal(map[string]bool{"approved": false})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/submissions/sub-1", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	adminContext(c)

	handler.Update(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, ledger.approved["sub-1"])
}

func TestSubmissionHandlerUpdateApproves(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	ledger.points["sub-1"] = 20
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{}, &screenshotStoreStub{})

	payload, _ := json.Marshal(map[string]bool{"approved": true})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/submissions/sub-1", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	adminContext(c)

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ledger.approved["sub-1"])
	assert.Equal(t, 20, ledger.balances["owner"])
}

func TestSubmissionHandlerListForTask(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSubmissionLedgerStub()
	ledger.details = []models.SubmissionDetail{{ID: "sub-1", Screenshot: "submissions/sub-1.png"}}
	handler := newSubmissionTestHandler(ledger, &taskRegistryStub{task: &models.Task{ID: "task-1"}}, &screenshotStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/tasks/task-1/submissions", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}
	adminContext(c)

	handler.ListForTask(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "files/token-sub-1")
}
