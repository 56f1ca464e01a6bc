// Package avatar serves time-limited signed URLs for profile pictures
// stored in the platform's avatars bucket.
package avatar

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/storage"
	"github.com/gin-gonic/gin"
)

// SignedURLTTL is how long an issued avatar URL stays valid.
const SignedURLTTL = time.Hour

type Handler struct {
	objects storage.Driver
	logger  *logger.Logger
}

func NewHandler(objects storage.Driver, logger *logger.Logger) *Handler {
	return &Handler{objects: objects, logger: logger}
}

// GetSignedURL handles GET /api/avatar?path=<storagePath>.
func (h *Handler) GetSignedURL(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing path"})
		return
	}

	signedURL, err := h.objects.PresignGet(c.Request.Context(), path, SignedURLTTL)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).WithComponent("avatar-handler").
			Error("failed to presign avatar", slog.String("path", path), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signedUrl": signedURL})
}
