package handler

import (
	"os"

	"github.com/gin-gonic/gin"

	appErrors "github.com/appquest/rewards-api/pkg/errors"
	"github.com/appquest/rewards-api/pkg/response"
	"github.com/appquest/rewards-api/pkg/storage"
)

// FileHandler serves stored screenshots through signed download links.
type FileHandler struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
}

// NewFileHandler constructs handler.
func NewFileHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *FileHandler {
	return &FileHandler{store: store, signer: signer}
}

// Download godoc
// @Summary Download a screenshot
// @Description Serves the file referenced by a signed download token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link"))
		return
	}

	path := h.store.Path(relPath)
	if _, err := os.Stat(path); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	c.File(path)
}
