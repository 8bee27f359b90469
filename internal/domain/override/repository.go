// internal/domain/override/repository.go
package override

import (
	"context"

	"garbage_notification_bot/internal/domain/waste"
)

// Repository defines the operations for persisting and retrieving override
// records.
type Repository interface {
	// Get returns the record for the date, or (nil, nil) when absent.
	// Implementations degrade read failures to absence: a missing override is
	// a safe fallback because the recurrence policy still applies.
	Get(ctx context.Context, date waste.Date) (*Record, error)
	// Set upserts the record for the date. The write is durable before Set
	// returns without error.
	Set(ctx context.Context, date waste.Date, rec Record) error
	// Remove deletes the record for the date. Removing an absent date is not
	// an error.
	Remove(ctx context.Context, date waste.Date) error
	// List returns all records in no particular order; callers sort.
	List(ctx context.Context) ([]Entry, error)
}
