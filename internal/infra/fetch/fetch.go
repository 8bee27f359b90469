// internal/infra/fetch/fetch.go
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"garbage_notification_bot/internal/app"
	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
	"garbage_notification_bot/internal/infra/database"
)

const fetchTimeout = 10 * time.Second

// StalenessMaxAge is how old the last successful fetch may be before the
// startup refresh pulls the feed again.
const StalenessMaxAge = 30 * 24 * time.Hour

// feedEntry is one record of the published schedule feed.
type feedEntry struct {
	Date       string   `json:"date"`
	Types      []string `json:"types"`
	Note       string   `json:"note"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
}

// Ingested is a validated override candidate. Source and confidence are
// folded into the note as free text; the core never branches on them.
type Ingested struct {
	Date       waste.Date
	Categories []waste.Category
	Note       string
}

// StampStore persists the last-successful-fetch timestamp.
type StampStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// Ingestor pulls the published schedule feed and applies its entries as
// automatic overrides. Manual entries are never clobbered.
type Ingestor struct {
	feedURL   string
	client    *http.Client
	overrides *app.OverrideService
	reader    override.Repository
	stamps    StampStore
	clock     app.Clock
	logger    *log.Logger
}

func NewIngestor(
	feedURL string,
	overrides *app.OverrideService,
	reader override.Repository,
	stamps StampStore,
	clock app.Clock,
	logger *log.Logger,
) *Ingestor {
	return &Ingestor{
		feedURL:   feedURL,
		client:    &http.Client{Timeout: fetchTimeout},
		overrides: overrides,
		reader:    reader,
		stamps:    stamps,
		clock:     clock,
		logger:    logger,
	}
}

// FetchOverrides downloads and validates the feed. Entries with malformed
// dates or unknown categories are skipped with a warning rather than
// failing the whole batch.
func (f *Ingestor) FetchOverrides(ctx context.Context) ([]Ingested, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule feed returned status %d", resp.StatusCode)
	}

	var entries []feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode schedule feed: %w", err)
	}

	out := make([]Ingested, 0, len(entries))
	for _, e := range entries {
		date, err := waste.ParseDate(e.Date)
		if err != nil {
			f.logger.Printf("WARN: Skipping feed entry with bad date %q: %v", e.Date, err)
			continue
		}
		categories := make([]waste.Category, 0, len(e.Types))
		valid := true
		for _, t := range e.Types {
			c, err := waste.ParseCategory(t)
			if err != nil {
				f.logger.Printf("WARN: Skipping feed entry for %s with bad category %q.", e.Date, t)
				valid = false
				break
			}
			categories = append(categories, c)
		}
		if !valid {
			continue
		}
		out = append(out, Ingested{Date: date, Categories: categories, Note: foldNote(e)})
	}
	return out, nil
}

// Ingest fetches the feed and applies every entry as an automatic override,
// skipping dates that carry a manual record. Returns the number of applied
// overrides.
func (f *Ingestor) Ingest(ctx context.Context) (int, error) {
	entries, err := f.FetchOverrides(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, e := range entries {
		existing, err := f.reader.Get(ctx, e.Date)
		if err == nil && existing != nil && existing.Origin == override.OriginManual {
			f.logger.Printf("INFO: Keeping manual override for %s, feed entry skipped.", e.Date)
			continue
		}
		if err := f.overrides.Set(ctx, e.Date, e.Categories, e.Note, override.OriginAutomatic); err != nil {
			return applied, fmt.Errorf("failed to apply feed entry for %s: %w", e.Date, err)
		}
		applied++
	}

	if err := f.stamps.Set(ctx, database.KeyLastFetch, f.clock.Now()); err != nil {
		f.logger.Printf("WARN: Failed to record fetch timestamp: %v", err)
	}
	f.logger.Printf("INFO: Schedule feed ingested, %d overrides applied (%d entries).", applied, len(entries))
	return applied, nil
}

// RefreshIfStale ingests the feed only when the last successful fetch is
// older than maxAge. Fetch failures degrade to the stored defaults; there is
// no retry beyond the next staleness check.
func (f *Ingestor) RefreshIfStale(ctx context.Context, maxAge time.Duration) error {
	var last time.Time
	err := f.stamps.Get(ctx, database.KeyLastFetch, &last)
	if err == nil && f.clock.Now().Sub(last) < maxAge {
		f.logger.Printf("INFO: Last schedule fetch at %s is recent enough, skipping refresh.", last.Format(time.RFC3339))
		return nil
	}
	if err != nil && !errors.Is(err, database.ErrKeyNotFound) {
		f.logger.Printf("WARN: Could not read fetch timestamp, refreshing anyway: %v", err)
	}
	_, err = f.Ingest(ctx)
	return err
}

func foldNote(e feedEntry) string {
	note := e.Note
	if note == "" {
		note = "自動取得"
	}
	if e.Source == "" {
		return note
	}
	return fmt.Sprintf("%s (source: %s, confidence: %.2f)", note, e.Source, e.Confidence)
}
