// Package accounts passes sign-up and sign-in through to the platform's
// identity service. The relay adds nothing here beyond input checks; the
// platform owns credentials, confirmation mail, and token issuance.
package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/platform"
	"github.com/gin-gonic/gin"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Handler struct {
	client *platform.Client
	logger *logger.Logger
}

func NewHandler(client *platform.Client, logger *logger.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// SignUp handles POST /api/auth/signup.
func (h *Handler) SignUp(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required."})
		return
	}

	result, err := h.client.SignUp(c.Request.Context(), creds.Email, creds.Password)
	if err != nil {
		h.respondAuthError(c, "sign-up", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sign-up successful! Check your email for confirmation.",
		"user":    result.User,
	})
}

// SignIn handles POST /api/auth/signin.
func (h *Handler) SignIn(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required."})
		return
	}

	session, err := h.client.SignInWithPassword(c.Request.Context(), creds.Email, creds.Password)
	if err != nil {
		h.respondAuthError(c, "sign-in", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sign-in successful!",
		"user":    session.User,
		"session": session,
	})
}

// respondAuthError relays the platform's own message for expected
// failures (wrong password, duplicate account) and hides everything
// else behind a 500.
func (h *Handler) respondAuthError(c *gin.Context, op string, err error) {
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": apiErr.Error()})
		return
	}

	h.logger.WithContext(c.Request.Context()).WithComponent("accounts-handler").
		Error(op+" failed", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
