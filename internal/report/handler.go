package report

import (
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/civitas-labs/issue-relay/internal/auth"
	"github.com/civitas-labs/issue-relay/internal/httperr"
	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceContextKey is where the handler stashes the request's state trace
// in the gin context, so tests assert on states rather than only on
// status codes.
const TraceContextKey = "request_trace"

// User-facing validation messages.
const (
	MsgImageRequired    = "Image is required."
	MsgTextOrAudio      = "Either text or audio must be provided."
	MsgCoordsRequired   = "Latitude and longitude are required."
	MsgNoProblemFound   = "No problem found"
	MsgUploadSuccessful = "Uploaded successfully"
)

func msgCategoryRequired() string {
	names := make([]string, len(AllowedCategories))
	for i, c := range AllowedCategories {
		names[i] = string(c)
	}
	return "Category must be one of: " + strings.Join(names, ", ")
}

// Handler serves the relay's submission endpoints.
type Handler struct {
	service *Service
	tmpDir  string
	logger  *logger.Logger
}

func NewHandler(service *Service, tmpDir string, logger *logger.Logger) *Handler {
	return &Handler{service: service, tmpDir: tmpDir, logger: logger}
}

// Upload handles POST /api/upload. Each request walks the state machine
// Unauthenticated -> Authenticated -> Validated -> Accepted/Rejected ->
// Persisted/Failed; every failure is terminal with no partial
// persistence and no retry.
func (h *Handler) Upload(c *gin.Context) {
	ctx := logger.WithRequestID(c.Request.Context(), uuid.New().String())
	c.Request = c.Request.WithContext(ctx)
	log := h.logger.WithContext(ctx).WithComponent("upload-handler")

	trace := NewRequestTrace()
	c.Set(TraceContextKey, trace)

	userID, ok := auth.GetUserID(c)
	if !ok {
		trace.mustTransition(StateFailed)
		httperr.Unauthorized(c, "No token provided")
		return
	}
	trace.mustTransition(StateAuthenticated)

	category := Category(strings.TrimSpace(c.PostForm("category")))
	if !category.IsAllowed() {
		trace.mustTransition(StateFailed)
		metrics.ObserveSubmission(metrics.OutcomeInvalid)
		httperr.BadRequest(c, msgCategoryRequired())
		return
	}

	imageHeader, err := c.FormFile("image")
	if err != nil {
		trace.mustTransition(StateFailed)
		metrics.ObserveSubmission(metrics.OutcomeInvalid)
		httperr.BadRequest(c, MsgImageRequired)
		return
	}

	text := strings.TrimSpace(c.PostForm("text"))
	audioHeader, audioErr := c.FormFile("audio")
	hasAudio := audioErr == nil && audioHeader != nil
	if text == "" && !hasAudio {
		trace.mustTransition(StateFailed)
		metrics.ObserveSubmission(metrics.OutcomeInvalid)
		httperr.BadRequest(c, MsgTextOrAudio)
		return
	}

	latitude, latErr := parseCoordinate(c.PostForm("latitude"))
	longitude, lonErr := parseCoordinate(c.PostForm("longitude"))
	if latErr != nil || lonErr != nil {
		trace.mustTransition(StateFailed)
		metrics.ObserveSubmission(metrics.OutcomeInvalid)
		httperr.BadRequest(c, MsgCoordsRequired)
		return
	}
	trace.mustTransition(StateValidated)

	// Business rule: these categories mean nothing is actually wrong, so
	// they must never reach storage or the table, however the category
	// was determined.
	if category.IsNonIssue() {
		trace.mustTransition(StateRejected)
		metrics.ObserveSubmission(metrics.OutcomeRejected)
		log.Info("submission rejected, no actionable issue", slog.String("category", string(category)))
		httperr.BadRequest(c, MsgNoProblemFound)
		return
	}
	trace.mustTransition(StateAccepted)

	imageTemp, err := h.stageUpload(c, imageHeader)
	if err != nil {
		trace.mustTransition(StateFailed)
		metrics.ObserveSubmission(metrics.OutcomeFailed)
		log.Error("failed to stage image", slog.String("error", err.Error()))
		httperr.Internal(c, "Failed to read uploaded image")
		return
	}
	// Temp files are removed whether or not the uploads succeed.
	defer os.Remove(imageTemp.TempPath)

	sub := Submission{
		UserID:    userID,
		Category:  category,
		Latitude:  latitude,
		Longitude: longitude,
		Image:     imageTemp,
	}
	if text != "" {
		sub.Text = &text
	}
	if address := strings.TrimSpace(c.PostForm("address")); address != "" {
		sub.Address = &address
	}

	if hasAudio {
		audioTemp, err := h.stageUpload(c, audioHeader)
		if err != nil {
			trace.mustTransition(StateFailed)
			metrics.ObserveSubmission(metrics.OutcomeFailed)
			log.Error("failed to stage audio", slog.String("error", err.Error()))
			httperr.Internal(c, "Failed to read uploaded audio")
			return
		}
		defer os.Remove(audioTemp.TempPath)
		sub.Audio = &audioTemp
	}

	record, err := h.service.Persist(ctx, sub)
	if err != nil {
		trace.mustTransition(StateFailed)
		metrics.ObserveSubmission(metrics.OutcomeFailed)
		log.Error("persist failed", slog.String("error", err.Error()))
		httperr.Internal(c, err.Error())
		return
	}
	trace.mustTransition(StatePersisted)
	metrics.ObserveSubmission(metrics.OutcomeAccepted)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": MsgUploadSuccessful,
		"record":  record,
	})
}

// ListMessages handles GET /api/messages: the user's records, newest
// first.
func (h *Handler) ListMessages(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("upload-handler")

	userID, ok := auth.GetUserID(c)
	if !ok {
		httperr.Unauthorized(c, "No token provided")
		return
	}

	records, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to list records", slog.String("error", err.Error()))
		httperr.Internal(c, err.Error())
		return
	}
	if records == nil {
		records = []Record{}
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": records})
}

// stageUpload writes a multipart file to the handler's temp directory and
// returns it as staged evidence.
func (h *Handler) stageUpload(c *gin.Context, fh *multipart.FileHeader) (Evidence, error) {
	tempPath := filepath.Join(h.tmpDir, uuid.New().String())
	if err := c.SaveUploadedFile(fh, tempPath); err != nil {
		return Evidence{}, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Evidence{
		TempPath:     tempPath,
		OriginalName: fh.Filename,
		ContentType:  contentType,
	}, nil
}

func parseCoordinate(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", raw)
	}
	return v, nil
}

// mustTransition panics on an illegal move; the machine is fixed at
// compile time, so a bad transition here is a programming error.
func (t *RequestTrace) mustTransition(next RequestState) {
	if err := t.Transition(next); err != nil {
		panic(err)
	}
}
