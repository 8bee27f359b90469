// internal/app/resolver.go
package app

import (
	"context"

	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
)

// Resolution is the effective collection outcome for one date.
type Resolution struct {
	Categories []waste.Category
	// Overridden is true when an explicit override decided the outcome. The
	// reminder path uses it to distinguish an explicit "no collection" day
	// from an ordinary non-collection weekday.
	Overridden bool
	Note       string
}

// Resolver computes the effective collection set for a date: override first,
// recurrence policy as the fallback. It is the single source of truth for
// both the interactive display and the background reminder; no other code
// path may re-derive this composition.
type Resolver struct {
	overrides override.Repository
	schedule  waste.Schedule
}

func NewResolver(overrides override.Repository, sched waste.Schedule) *Resolver {
	return &Resolver{overrides: overrides, schedule: sched}
}

// Resolve returns the collection set for the date.
func (r *Resolver) Resolve(ctx context.Context, date waste.Date) []waste.Category {
	return r.ResolveDetail(ctx, date).Categories
}

// ResolveDetail returns the collection set along with override provenance.
func (r *Resolver) ResolveDetail(ctx context.Context, date waste.Date) Resolution {
	rec, err := r.overrides.Get(ctx, date)
	if err != nil || rec == nil {
		return Resolution{Categories: r.schedule.Evaluate(date)}
	}
	return Resolution{Categories: rec.Categories, Overridden: true, Note: rec.Note}
}
