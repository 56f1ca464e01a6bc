// Package submit holds the client side of the submission pipeline:
// draft validation, multipart assembly, and a single-flight guard around
// the one network call a submission is allowed to make.
package submit

import (
	"errors"
	"strings"

	"github.com/civitas-labs/issue-relay/internal/report"
)

// Location is the captured geolocation for a draft.
type Location struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// Draft is a submission being composed. It exists only between capture
// and the relay's acknowledgment; it is never persisted as-is.
type Draft struct {
	ImagePath  string
	AudioPath  string
	Text       string
	Category   string // raw: classifier output or manual entry
	Confidence float64
	Location   *Location
}

// Validation failures, one per precondition, in check order.
var (
	ErrImageRequired   = errors.New("Image is required.")
	ErrTextOrAudio     = errors.New("Please provide either text or audio.")
	ErrInvalidCategory = errors.New("Please select a valid category.")
	ErrNoLocation      = errors.New("Please fetch your location.")
)

// ValidateDraft checks the draft's preconditions in a fixed order and
// stops at the first failure: image, text-or-audio, category, location.
// On success it returns the canonical category the relay will receive.
func ValidateDraft(d Draft) (report.Category, error) {
	if d.ImagePath == "" {
		return "", ErrImageRequired
	}
	if strings.TrimSpace(d.Text) == "" && d.AudioPath == "" {
		return "", ErrTextOrAudio
	}
	category := report.NormalizeCategory(d.Category)
	if category == "" {
		return "", ErrInvalidCategory
	}
	if d.Location == nil {
		return "", ErrNoLocation
	}
	return category, nil
}
