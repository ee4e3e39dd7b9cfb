package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appquest/rewards-api/internal/service"
	appErrors "github.com/appquest/rewards-api/pkg/errors"
	"github.com/appquest/rewards-api/pkg/response"
)

// SubmissionHandler exposes the submission ledger and verification
// endpoints.
type SubmissionHandler struct {
	submissions  *service.SubmissionService
	verification *service.VerificationService
	maxFileSize  int64
}

// NewSubmissionHandler constructs handler. maxFileSize bounds uploaded
// screenshots in bytes.
func NewSubmissionHandler(submissions *service.SubmissionService, verification *service.VerificationService, maxFileSize int64) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, verification: verification, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Submit task proof
// @Description Upload a screenshot as proof of completing a task
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Task ID"
// @Param screenshot formData file true "Screenshot (png, jpg, jpeg)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id}/submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("screenshot")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "screenshot file required"))
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "screenshot exceeds the maximum allowed size"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}

	submission, err := h.submissions.Create(c.Request.Context(), claims.UserID, c.Param("id"), fileHeader.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, submission)
}

// ListForTask godoc
// @Summary List submissions for a task
// @Description Returns every submission for a task with signed screenshot links
// @Tags Submissions
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id}/submissions [get]
func (h *SubmissionHandler) ListForTask(c *gin.Context) {
	items, err := h.submissions.ListForTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Verify godoc
// @Summary Verify a submission
// @Description Approve a submission and credit its task's points to the owner
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/verify [patch]
func (h *SubmissionHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submission, err := h.verification.Verify(c.Request.Context(), c.Param("id"), claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Update godoc
// @Summary Update a submission
// @Description Partial update; approval is the only mutable field and
// @Description routes through the verification workflow
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body object true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [patch]
func (h *SubmissionHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Approved *bool `json:"approved"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	if payload.Approved == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approved field required"))
		return
	}
	if !*payload.Approved {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approval cannot be revoked"))
		return
	}

	submission, err := h.verification.Verify(c.Request.Context(), c.Param("id"), claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
