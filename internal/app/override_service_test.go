package app

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
	"garbage_notification_bot/internal/infra/bus"
)

func newTestOverrideService(repo override.Repository) (*OverrideService, <-chan bus.Message) {
	messageBus := bus.New()
	received := messageBus.Subscribe()
	svc := NewOverrideService(
		repo,
		messageBus,
		fixedClock{now: time.Date(2025, time.July, 8, 12, 0, 0, 0, time.Local)},
		log.New(io.Discard, "", 0),
		DefaultSeedWindow(),
	)
	return svc, received
}

func drainMessages(ch <-chan bus.Message) []bus.Message {
	var msgs []bus.Message
	for {
		select {
		case m := <-ch:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestSetNormalizesAndPublishes(t *testing.T) {
	repo := newMemOverrideRepo()
	svc, received := newTestOverrideService(repo)
	ctx := context.Background()

	date := mustDate(t, "2025-07-08")
	cats := []waste.Category{waste.CategoryBurnable, waste.CategoryBurnable, waste.CategoryCansMetal}
	require.NoError(t, svc.Set(ctx, date, cats, "臨時", override.OriginManual))

	rec, err := svc.Get(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []waste.Category{waste.CategoryBurnable, waste.CategoryCansMetal}, rec.Categories)
	assert.Equal(t, override.OriginManual, rec.Origin)
	assert.False(t, rec.CreatedAt.IsZero())

	msgs := drainMessages(received)
	require.Len(t, msgs, 1)
	assert.IsType(t, bus.OverridesChanged{}, msgs[0])
}

func TestSetSurfacesWriteFailure(t *testing.T) {
	repo := newMemOverrideRepo()
	repo.setErr = assert.AnError
	svc, received := newTestOverrideService(repo)

	err := svc.Set(context.Background(), mustDate(t, "2025-07-08"), nil, "", override.OriginManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	// A failed write never announces a change.
	assert.Empty(t, drainMessages(received))
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc, received := newTestOverrideService(newMemOverrideRepo())
	ctx := context.Background()

	date := mustDate(t, "2025-07-08")
	require.NoError(t, svc.Set(ctx, date, nil, "", override.OriginManual))
	require.NoError(t, svc.Remove(ctx, date))
	require.NoError(t, svc.Remove(ctx, date))

	rec, err := svc.Get(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Len(t, drainMessages(received), 3)
}

func TestSeedDefaultsInsertsClosureWindow(t *testing.T) {
	repo := newMemOverrideRepo()
	svc, received := newTestOverrideService(repo)
	ctx := context.Background()

	inserted, err := svc.SeedDefaults(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 6, inserted)

	for _, s := range []string{
		"2025-12-29", "2025-12-30", "2025-12-31",
		"2026-01-01", "2026-01-02", "2026-01-03",
	} {
		rec, err := svc.Get(ctx, mustDate(t, s))
		require.NoError(t, err)
		require.NotNil(t, rec, "expected seeded override for %s", s)
		assert.Empty(t, rec.Categories)
		assert.Equal(t, override.OriginAutomatic, rec.Origin)
		assert.Equal(t, "年末年始", rec.Note)
	}

	msgs := drainMessages(received)
	require.Len(t, msgs, 1)
	assert.IsType(t, bus.OverridesChanged{}, msgs[0])
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	svc, received := newTestOverrideService(newMemOverrideRepo())
	ctx := context.Background()

	_, err := svc.SeedDefaults(ctx, 2025)
	require.NoError(t, err)
	drainMessages(received)

	inserted, err := svc.SeedDefaults(ctx, 2025)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	// Nothing inserted, nothing announced.
	assert.Empty(t, drainMessages(received))
}

func TestSeedDefaultsNeverOverwritesManualEntry(t *testing.T) {
	repo := newMemOverrideRepo()
	svc, _ := newTestOverrideService(repo)
	ctx := context.Background()

	date := mustDate(t, "2025-12-30")
	require.NoError(t, svc.Set(ctx, date, []waste.Category{waste.CategoryBurnable}, "特別収集", override.OriginManual))

	inserted, err := svc.SeedDefaults(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 5, inserted)

	rec, err := svc.Get(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, override.OriginManual, rec.Origin)
	assert.Equal(t, []waste.Category{waste.CategoryBurnable}, rec.Categories)
}

func TestListInRange(t *testing.T) {
	svc, _ := newTestOverrideService(newMemOverrideRepo())
	ctx := context.Background()

	_, err := svc.SeedDefaults(ctx, 2025)
	require.NoError(t, err)

	entries, err := svc.ListInRange(ctx, mustDate(t, "2025-12-30"), mustDate(t, "2026-01-01"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Bounds are inclusive and the result is sorted.
	assert.Equal(t, "2025-12-30", entries[0].Date.String())
	assert.Equal(t, "2025-12-31", entries[1].Date.String())
	assert.Equal(t, "2026-01-01", entries[2].Date.String())
}
