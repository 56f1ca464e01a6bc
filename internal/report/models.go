package report

import "time"

// Category is one of the issue types the system recognizes.
type Category string

const (
	CategoryGarbage        Category = "garbage"
	CategoryNormalRoad     Category = "normal road"
	CategoryPotholes       Category = "potholes"
	CategoryStreetLightOff Category = "street light off"
	CategoryStreetLightOn  Category = "street light on"
)

// AllowedCategories is the closed set accepted by the relay, in the order
// it is reported back to clients on validation failure.
var AllowedCategories = []Category{
	CategoryGarbage,
	CategoryNormalRoad,
	CategoryPotholes,
	CategoryStreetLightOff,
	CategoryStreetLightOn,
}

// IsAllowed reports whether c is a member of the closed category set.
func (c Category) IsAllowed() bool {
	for _, allowed := range AllowedCategories {
		if c == allowed {
			return true
		}
	}
	return false
}

// IsNonIssue reports whether c describes "no actionable issue". Submissions
// with these categories are rejected before any write happens.
func (c Category) IsNonIssue() bool {
	return c == CategoryNormalRoad || c == CategoryStreetLightOn
}

// Status enum
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"

	// StatusClosed only appears in the worker-facing view; the relay never
	// writes it.
	StatusClosed Status = "Closed"
)

// DepartmentFor derives the routing department from an accepted category.
func DepartmentFor(c Category) string {
	switch c {
	case CategoryGarbage, CategoryPotholes:
		return "Municipality"
	case CategoryStreetLightOff:
		return "Electrical"
	}
	return "General"
}

// Record is a persisted issue, owned by the platform's table store. The
// relay writes it exactly once; clients hold read-only projections.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Category   Category  `json:"category"`
	Department string    `json:"department"`
	Text       *string   `json:"text"`
	ImageURL   string    `json:"image_url"`
	AudioURL   *string   `json:"audio_url"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    *string   `json:"address"`
	Status     Status    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EffectiveStatus returns the record's status, defaulting to Pending when
// the row was inserted without one.
func (r Record) EffectiveStatus() Status {
	if r.Status == "" {
		return StatusPending
	}
	return r.Status
}

// InsertRow is the subset of record fields the relay supplies on insert;
// id, status, and created_at are assigned by the platform.
type InsertRow struct {
	UserID     string   `json:"user_id"`
	Category   Category `json:"category"`
	Department string   `json:"department"`
	Text       *string  `json:"text"`
	ImageURL   string   `json:"image_url"`
	AudioURL   *string  `json:"audio_url"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Address    *string  `json:"address"`
}
