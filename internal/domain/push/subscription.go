package push

import "context"

// Subscription is one registered web-push endpoint.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Repository defines the operations for persisting push subscriptions.
type Repository interface {
	List(ctx context.Context) ([]Subscription, error)
	// Add registers a subscription; re-adding an endpoint replaces its keys.
	Add(ctx context.Context, sub Subscription) error
	// Remove deletes the subscription for the endpoint; idempotent.
	Remove(ctx context.Context, endpoint string) error
}
