// internal/domain/override/override.go
package override

import (
	"time"

	"garbage_notification_bot/internal/domain/waste"
)

// Origin records who or what created an override.
type Origin string

const (
	OriginManual    Origin = "manual"    // entered by the user
	OriginAutomatic Origin = "automatic" // holiday seeding or schedule ingestion
)

// Record is a date-specific exception to the recurrence policy. At most one
// record exists per calendar date; writes are last-wins with no versioning.
// An empty Categories slice means "no collection on this date".
type Record struct {
	Categories []waste.Category `json:"categories"`
	Note       string           `json:"note,omitempty"`
	Origin     Origin           `json:"origin"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Entry pairs a record with the date it overrides, for listings.
type Entry struct {
	Date   waste.Date
	Record Record
}
