package fetch

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garbage_notification_bot/internal/app"
	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
	"garbage_notification_bot/internal/infra/bus"
	"garbage_notification_bot/internal/infra/database"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type memOverrideRepo struct {
	records map[string]override.Record
}

func newMemOverrideRepo() *memOverrideRepo {
	return &memOverrideRepo{records: make(map[string]override.Record)}
}

func (r *memOverrideRepo) Get(_ context.Context, date waste.Date) (*override.Record, error) {
	rec, ok := r.records[date.String()]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memOverrideRepo) Set(_ context.Context, date waste.Date, rec override.Record) error {
	r.records[date.String()] = rec
	return nil
}

func (r *memOverrideRepo) Remove(_ context.Context, date waste.Date) error {
	delete(r.records, date.String())
	return nil
}

func (r *memOverrideRepo) List(_ context.Context) ([]override.Entry, error) {
	entries := make([]override.Entry, 0, len(r.records))
	for key, rec := range r.records {
		date, err := waste.ParseDate(key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, override.Entry{Date: date, Record: rec})
	}
	return entries, nil
}

type memStampStore struct {
	values map[string]json.RawMessage
}

func newMemStampStore() *memStampStore {
	return &memStampStore{values: make(map[string]json.RawMessage)}
}

func (s *memStampStore) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.values[key]
	if !ok {
		return database.ErrKeyNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (s *memStampStore) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = raw
	return nil
}

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestIngestor(t *testing.T, feedURL string, repo override.Repository, stamps StampStore, now time.Time) *Ingestor {
	t.Helper()
	clock := fixedClock{now: now}
	svc := app.NewOverrideService(repo, bus.New(), clock, discard(), app.DefaultSeedWindow())
	return NewIngestor(feedURL, svc, repo, stamps, clock, discard())
}

func serveFeed(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const sampleFeed = `[
	{"date": "2025-08-11", "types": [], "note": "山の日", "source": "arida-city", "confidence": 0.9},
	{"date": "2025-08-12", "types": ["burnable"]},
	{"date": "not-a-date", "types": [], "note": "broken"},
	{"date": "2025-08-13", "types": ["plutonium"], "note": "broken"}
]`

func TestFetchOverridesSkipsMalformedEntries(t *testing.T) {
	srv := serveFeed(t, sampleFeed, nil)
	ing := newTestIngestor(t, srv.URL, newMemOverrideRepo(), newMemStampStore(), time.Now())

	entries, err := ing.FetchOverrides(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "2025-08-11", entries[0].Date.String())
	assert.Empty(t, entries[0].Categories)
	assert.Equal(t, "山の日 (source: arida-city, confidence: 0.90)", entries[0].Note)

	assert.Equal(t, "2025-08-12", entries[1].Date.String())
	assert.Equal(t, []waste.Category{waste.CategoryBurnable}, entries[1].Categories)
	assert.Equal(t, "自動取得", entries[1].Note)
}

func TestFetchOverridesRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	ing := newTestIngestor(t, srv.URL, newMemOverrideRepo(), newMemStampStore(), time.Now())

	_, err := ing.FetchOverrides(context.Background())
	assert.Error(t, err)
}

func TestIngestAppliesAutomaticAndKeepsManual(t *testing.T) {
	repo := newMemOverrideRepo()
	manual := mustDate(t, "2025-08-11")
	require.NoError(t, repo.Set(context.Background(), manual, override.Record{
		Categories: []waste.Category{waste.CategoryBurnable},
		Note:       "手動設定",
		Origin:     override.OriginManual,
		CreatedAt:  time.Now(),
	}))

	stamps := newMemStampStore()
	now := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.Local)
	srv := serveFeed(t, sampleFeed, nil)
	ing := newTestIngestor(t, srv.URL, repo, stamps, now)

	applied, err := ing.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// The manual record survived untouched.
	rec, err := repo.Get(context.Background(), manual)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, override.OriginManual, rec.Origin)
	assert.Equal(t, []waste.Category{waste.CategoryBurnable}, rec.Categories)

	// The new entry landed as automatic.
	rec, err = repo.Get(context.Background(), mustDate(t, "2025-08-12"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, override.OriginAutomatic, rec.Origin)

	// A successful ingest records the fetch timestamp.
	var stamped time.Time
	require.NoError(t, stamps.Get(context.Background(), database.KeyLastFetch, &stamped))
	assert.True(t, stamped.Equal(now))
}

func TestRefreshIfStaleSkipsRecentFetch(t *testing.T) {
	now := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.Local)
	stamps := newMemStampStore()
	require.NoError(t, stamps.Set(context.Background(), database.KeyLastFetch, now.Add(-24*time.Hour)))

	var hits atomic.Int32
	srv := serveFeed(t, sampleFeed, &hits)
	ing := newTestIngestor(t, srv.URL, newMemOverrideRepo(), stamps, now)

	require.NoError(t, ing.RefreshIfStale(context.Background(), StalenessMaxAge))
	assert.Zero(t, hits.Load())
}

func TestRefreshIfStaleIngestsWhenStampMissing(t *testing.T) {
	now := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.Local)
	var hits atomic.Int32
	srv := serveFeed(t, sampleFeed, &hits)
	repo := newMemOverrideRepo()
	ing := newTestIngestor(t, srv.URL, repo, newMemStampStore(), now)

	require.NoError(t, ing.RefreshIfStale(context.Background(), StalenessMaxAge))
	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, repo.records, 2)
}

func TestRefreshIfStaleIngestsWhenStampOld(t *testing.T) {
	now := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.Local)
	stamps := newMemStampStore()
	require.NoError(t, stamps.Set(context.Background(), database.KeyLastFetch, now.Add(-45*24*time.Hour)))

	var hits atomic.Int32
	srv := serveFeed(t, sampleFeed, &hits)
	ing := newTestIngestor(t, srv.URL, newMemOverrideRepo(), stamps, now)

	require.NoError(t, ing.RefreshIfStale(context.Background(), StalenessMaxAge))
	assert.Equal(t, int32(1), hits.Load())
}

func mustDate(t *testing.T, s string) waste.Date {
	t.Helper()
	d, err := waste.ParseDate(s)
	require.NoError(t, err)
	return d
}
