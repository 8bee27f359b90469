// internal/domain/schedule/repository.go
package schedule

import "context"

// Repository persists the singleton scheduler state.
type Repository interface {
	// Load returns the persisted state, or the zero State when none has been
	// written yet (a never-enabled scheduler).
	Load(ctx context.Context) (State, error)
	// Save durably replaces the persisted state.
	Save(ctx context.Context, state State) error
}
