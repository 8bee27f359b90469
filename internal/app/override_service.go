// internal/app/override_service.go
package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
	"garbage_notification_bot/internal/infra/bus"
)

// SeedEntry describes one default closure date, relative to a base year.
type SeedEntry struct {
	Month     time.Month
	Day       int
	YearDelta int
	Note      string
}

// DefaultSeedWindow returns the year-end/new-year closure window during
// which the town collects nothing. This is configuration data, not an
// invariant: deployments may extend it with further published exceptions.
func DefaultSeedWindow() []SeedEntry {
	const note = "年末年始"
	return []SeedEntry{
		{Month: time.December, Day: 29, YearDelta: 0, Note: note},
		{Month: time.December, Day: 30, YearDelta: 0, Note: note},
		{Month: time.December, Day: 31, YearDelta: 0, Note: note},
		{Month: time.January, Day: 1, YearDelta: 1, Note: note},
		{Month: time.January, Day: 2, YearDelta: 1, Note: note},
		{Month: time.January, Day: 3, YearDelta: 1, Note: note},
	}
}

// OverrideService owns all writes to the override store and announces them
// on the bus so other contexts can invalidate their caches.
type OverrideService struct {
	repo       override.Repository
	messageBus *bus.Bus
	clock      Clock
	logger     *log.Logger
	seedWindow []SeedEntry
}

func NewOverrideService(
	repo override.Repository,
	messageBus *bus.Bus,
	clock Clock,
	logger *log.Logger,
	seedWindow []SeedEntry,
) *OverrideService {
	return &OverrideService{
		repo:       repo,
		messageBus: messageBus,
		clock:      clock,
		logger:     logger,
		seedWindow: seedWindow,
	}
}

// Set upserts the override for the date. The write is durable before Set
// returns; a persistence failure surfaces to the caller so the initiating
// action can report it.
func (s *OverrideService) Set(ctx context.Context, date waste.Date, categories []waste.Category, note string, origin override.Origin) error {
	rec := override.Record{
		Categories: waste.NormalizeSet(categories),
		Note:       note,
		Origin:     origin,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Set(ctx, date, rec); err != nil {
		s.logger.Printf("ERROR: Failed to set override for %s: %v", date, err)
		return fmt.Errorf("failed to set override for %s: %w", date, err)
	}
	s.logger.Printf("INFO: Override set for %s (%d categories, origin %s).", date, len(rec.Categories), origin)
	s.messageBus.Publish(bus.OverridesChanged{})
	return nil
}

// Remove deletes the override for the date; removing an absent date is not
// an error.
func (s *OverrideService) Remove(ctx context.Context, date waste.Date) error {
	if err := s.repo.Remove(ctx, date); err != nil {
		s.logger.Printf("ERROR: Failed to remove override for %s: %v", date, err)
		return fmt.Errorf("failed to remove override for %s: %w", date, err)
	}
	s.logger.Printf("INFO: Override removed for %s.", date)
	s.messageBus.Publish(bus.OverridesChanged{})
	return nil
}

// Get returns the override for the date, or nil when absent.
func (s *OverrideService) Get(ctx context.Context, date waste.Date) (*override.Record, error) {
	return s.repo.Get(ctx, date)
}

// List returns all overrides sorted by date.
func (s *OverrideService) List(ctx context.Context) ([]override.Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Compare(entries[j].Date) < 0
	})
	return entries, nil
}

// ListInRange returns the overrides with from <= date <= to, sorted by date.
// Callers display the result as-is instead of re-filtering.
func (s *OverrideService) ListInRange(ctx context.Context, from, to waste.Date) ([]override.Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ranged := make([]override.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Date.Compare(from) >= 0 && e.Date.Compare(to) <= 0 {
			ranged = append(ranged, e)
		}
	}
	return ranged, nil
}

// SeedDefaults inserts the configured closure records relative to the given
// base year, only where no record exists. Seeding never overwrites a manual
// entry or a prior automatic one; calling it twice is a no-op the second
// time. Returns the number of records inserted.
func (s *OverrideService) SeedDefaults(ctx context.Context, year int) (int, error) {
	inserted := 0
	for _, entry := range s.seedWindow {
		date := waste.Date{Year: year + entry.YearDelta, Month: entry.Month, Day: entry.Day}
		existing, err := s.repo.Get(ctx, date)
		if err != nil {
			return inserted, fmt.Errorf("failed to check existing override for %s: %w", date, err)
		}
		if existing != nil {
			continue
		}
		rec := override.Record{
			Categories: []waste.Category{},
			Note:       entry.Note,
			Origin:     override.OriginAutomatic,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.repo.Set(ctx, date, rec); err != nil {
			return inserted, fmt.Errorf("failed to seed override for %s: %w", date, err)
		}
		inserted++
	}
	if inserted > 0 {
		s.logger.Printf("INFO: Seeded %d default holiday overrides for year %d.", inserted, year)
		s.messageBus.Publish(bus.OverridesChanged{})
	}
	return inserted, nil
}
