// internal/infra/database/kv.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// ErrKeyNotFound is returned when a settings key has no stored value.
var ErrKeyNotFound = fmt.Errorf("settings key not found")

// Durable namespace keys shared by both execution contexts.
const (
	KeyOverrideMap       = "override-map"
	KeySchedulerState    = "scheduler-state"
	KeyPushSubscriptions = "push-subscriptions"
	KeyLastFetch         = "last-successful-fetch"
)

// settingsKV is the store surface the repositories in this package build on.
type settingsKV interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// KVStore is a durable key-value store for settings and override blobs,
// backed by a single Postgres table with an in-process read cache.
//
// The cache is only trusted until a cross-context sync message arrives;
// Invalidate must be called on receipt of such a message, never assumed
// fresh indefinitely. Durability is serialized by Postgres itself, not by
// application-level locks: the mutex here guards only the cache map.
type KVStore struct {
	db     *sql.DB
	logger *log.Logger

	mu    sync.RWMutex
	cache map[string]json.RawMessage
}

func NewKVStore(db *sql.DB, logger *log.Logger) *KVStore {
	return &KVStore{
		db:     db,
		logger: logger,
		cache:  make(map[string]json.RawMessage),
	}
}

// EnsureSchema creates the settings table if it does not exist yet.
func (s *KVStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS settings (
                key        TEXT PRIMARY KEY,
                value      JSONB NOT NULL,
                updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
              )`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure settings schema: %w", err)
	}
	return nil
}

// Get reads the value stored under key into dest. Returns ErrKeyNotFound
// when no value exists.
func (s *KVStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.RLock()
	raw, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("error decoding cached value for key %q: %w", key, err)
		}
		return nil
	}

	var stored []byte
	query := `SELECT value FROM settings WHERE key = $1`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&stored)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrKeyNotFound
		}
		return fmt.Errorf("error reading settings key %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = json.RawMessage(stored)
	s.mu.Unlock()

	if err := json.Unmarshal(stored, dest); err != nil {
		return fmt.Errorf("error decoding value for key %q: %w", key, err)
	}
	return nil
}

// Set durably upserts the value under key. The cache is refreshed only after
// the write has committed, so a failed write never poisons reads.
func (s *KVStore) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error encoding value for key %q: %w", key, err)
	}

	query := `INSERT INTO settings (key, value, updated_at)
               VALUES ($1, $2, NOW())
               ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("error writing settings key %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = json.RawMessage(raw)
	s.mu.Unlock()
	return nil
}

// Delete removes the value under key. Deleting an absent key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("error deleting settings key %q: %w", key, err)
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// Invalidate drops the cached values for the given keys. Called when a sync
// message reports that another context wrote them.
func (s *KVStore) Invalidate(keys ...string) {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.cache, key)
	}
	s.mu.Unlock()
	s.logger.Printf("INFO: Cache invalidated for keys %v.", keys)
}
