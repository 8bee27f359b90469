// internal/infra/database/override_repository.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/waste"
)

// KVOverrideRepository stores the whole override map as a single JSON blob
// under the override-map key, keyed by canonical YYYY-MM-DD date strings.
// Writes rewrite the whole blob, so the read-modify-write is serialized by a
// mutex; concurrent handler goroutines must not lose each other's records.
type KVOverrideRepository struct {
	kv     settingsKV
	logger *log.Logger

	mu sync.Mutex
}

func NewKVOverrideRepository(kv settingsKV, logger *log.Logger) *KVOverrideRepository {
	return &KVOverrideRepository{kv: kv, logger: logger}
}

func (r *KVOverrideRepository) load(ctx context.Context) (map[string]override.Record, error) {
	m := make(map[string]override.Record)
	err := r.kv.Get(ctx, KeyOverrideMap, &m)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return m, nil
		}
		return nil, fmt.Errorf("error loading override map: %w", err)
	}
	return m, nil
}

// Get returns the override for the date, or (nil, nil) when absent. Read
// failures degrade to absence: the recurrence policy is the safe fallback.
func (r *KVOverrideRepository) Get(ctx context.Context, date waste.Date) (*override.Record, error) {
	m, err := r.load(ctx)
	if err != nil {
		r.logger.Printf("WARN: Override read failed for %s, degrading to absent: %v", date, err)
		return nil, nil
	}
	rec, ok := m[date.String()]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *KVOverrideRepository) Set(ctx context.Context, date waste.Date, rec override.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.load(ctx)
	if err != nil {
		return err
	}
	m[date.String()] = rec
	if err := r.kv.Set(ctx, KeyOverrideMap, m); err != nil {
		return fmt.Errorf("error persisting override for %s: %w", date, err)
	}
	return nil
}

func (r *KVOverrideRepository) Remove(ctx context.Context, date waste.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := m[date.String()]; !ok {
		return nil
	}
	delete(m, date.String())
	if err := r.kv.Set(ctx, KeyOverrideMap, m); err != nil {
		return fmt.Errorf("error persisting override removal for %s: %w", date, err)
	}
	return nil
}

func (r *KVOverrideRepository) List(ctx context.Context) ([]override.Entry, error) {
	m, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]override.Entry, 0, len(m))
	for key, rec := range m {
		date, err := waste.ParseDate(key)
		if err != nil {
			r.logger.Printf("WARN: Skipping override with malformed date key %q: %v", key, err)
			continue
		}
		entries = append(entries, override.Entry{Date: date, Record: rec})
	}
	return entries, nil
}
