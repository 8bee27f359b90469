// internal/infra/database/schedule_repository.go
package database

import (
	"context"
	"errors"
	"fmt"

	"garbage_notification_bot/internal/domain/schedule"
)

// KVScheduleRepository persists the singleton scheduler state blob under the
// scheduler-state key.
type KVScheduleRepository struct {
	kv settingsKV
}

func NewKVScheduleRepository(kv settingsKV) *KVScheduleRepository {
	return &KVScheduleRepository{kv: kv}
}

// Load returns the persisted state. A missing blob yields the zero State
// (never-enabled scheduler), not an error.
func (r *KVScheduleRepository) Load(ctx context.Context) (schedule.State, error) {
	var state schedule.State
	err := r.kv.Get(ctx, KeySchedulerState, &state)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return schedule.State{}, nil
		}
		return schedule.State{}, fmt.Errorf("error loading scheduler state: %w", err)
	}
	return state, nil
}

func (r *KVScheduleRepository) Save(ctx context.Context, state schedule.State) error {
	if err := r.kv.Set(ctx, KeySchedulerState, state); err != nil {
		return fmt.Errorf("error persisting scheduler state: %w", err)
	}
	return nil
}
