// internal/infra/webpush/notifier.go
package webpush

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"garbage_notification_bot/internal/domain/push"

	webpushgo "github.com/SherClockHolmes/webpush-go"
)

const notificationTTL = 86400 // seconds; a daily reminder is stale after a day

// Notifier delivers reminders as web-push notifications to every stored
// subscription. It implements app.Notifier.
type Notifier struct {
	subs            push.Repository
	vapidPublicKey  string
	vapidPrivateKey string
	contactEmail    string
	logger          *log.Logger
}

func NewNotifier(subs push.Repository, vapidPublicKey, vapidPrivateKey, contactEmail string, logger *log.Logger) (*Notifier, error) {
	if vapidPublicKey == "" || vapidPrivateKey == "" || contactEmail == "" {
		return nil, fmt.Errorf("VAPID configuration required: public key, private key and contact email must all be set")
	}
	return &Notifier{
		subs:            subs,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		contactEmail:    contactEmail,
		logger:          logger,
	}, nil
}

// Send pushes the notification to every subscription. Endpoints that report
// themselves gone (404/410) are pruned from the store; other failures are
// logged and counted but never block the remaining endpoints.
func (n *Notifier) Send(ctx context.Context, title, body string) error {
	subs, err := n.subs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": title,
		"body":  body,
		"icon":  "/icon-192x192.png",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	options := &webpushgo.Options{
		Subscriber:      n.contactEmail,
		VAPIDPublicKey:  n.vapidPublicKey,
		VAPIDPrivateKey: n.vapidPrivateKey,
		TTL:             notificationTTL,
		Urgency:         webpushgo.UrgencyNormal,
	}

	failed := 0
	for _, sub := range subs {
		target := &webpushgo.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpushgo.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}
		resp, err := webpushgo.SendNotification(payload, target, options)
		if err != nil {
			failed++
			n.logger.Printf("ERROR: Push delivery to %s failed: %v", sub.Endpoint, err)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			n.logger.Printf("INFO: Subscription %s is gone (status %d), pruning.", sub.Endpoint, resp.StatusCode)
			if err := n.subs.Remove(ctx, sub.Endpoint); err != nil {
				n.logger.Printf("WARN: Failed to prune subscription %s: %v", sub.Endpoint, err)
			}
		case resp.StatusCode >= 400:
			failed++
			n.logger.Printf("ERROR: Push to %s rejected with status %d.", sub.Endpoint, resp.StatusCode)
		}
	}

	if failed > 0 {
		return fmt.Errorf("web push delivery failed for %d of %d subscriptions", failed, len(subs))
	}
	return nil
}
