package app

import (
	"context"
	"time"

	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
)

// fixedClock always reports the same instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// memOverrideRepo is a map-backed override.Repository for tests.
type memOverrideRepo struct {
	records map[string]override.Record
	getErr  error
	setErr  error
}

func newMemOverrideRepo() *memOverrideRepo {
	return &memOverrideRepo{records: make(map[string]override.Record)}
}

func (r *memOverrideRepo) Get(_ context.Context, date waste.Date) (*override.Record, error) {
	if r.getErr != nil {
		// Mirrors the production repository: read failures degrade to absent.
		return nil, nil
	}
	rec, ok := r.records[date.String()]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memOverrideRepo) Set(_ context.Context, date waste.Date, rec override.Record) error {
	if r.setErr != nil {
		return r.setErr
	}
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
