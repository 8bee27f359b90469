// internal/infra/database/subscription_repository.go
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"garbage_notification_bot/internal/domain/push"
)

// KVSubscriptionRepository persists web-push subscriptions as a list under
// the push-subscriptions key. The list is rewritten whole on every change, so
// Add/Remove serialize through a mutex.
type KVSubscriptionRepository struct {
	kv settingsKV

	mu sync.Mutex
}

func NewKVSubscriptionRepository(kv settingsKV) *KVSubscriptionRepository {
	return &KVSubscriptionRepository{kv: kv}
}

func (r *KVSubscriptionRepository) load(ctx context.Context) ([]push.Subscription, error) {
	var subs []push.Subscription
	err := r.kv.Get(ctx, KeyPushSubscriptions, &subs)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading push subscriptions: %w", err)
	}
	return subs, nil
}

func (r *KVSubscriptionRepository) List(ctx context.Context) ([]push.Subscription, error) {
	return r.load(ctx)
}

func (r *KVSubscriptionRepository) Add(ctx context.Context, sub push.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, err := r.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range subs {
		if existing.Endpoint == sub.Endpoint {
			subs[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		subs = append(subs, sub)
	}
	if err := r.kv.Set(ctx, KeyPushSubscriptions, subs); err != nil {
		return fmt.Errorf("error persisting push subscription: %w", err)
	}
	return nil
}

func (r *KVSubscriptionRepository) Remove(ctx context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, existing := range subs {
		if existing.Endpoint != endpoint {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(subs) {
		return nil
	}
	if err := r.kv.Set(ctx, KeyPushSubscriptions, kept); err != nil {
		return fmt.Errorf("error persisting push subscription removal: %w", err)
	}
	return nil
}
