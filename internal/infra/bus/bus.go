// internal/infra/bus/bus.go
package bus

import (
	"sync"

	"garbage_notification_bot/internal/domain/schedule"
)

// Message is the closed set of envelopes exchanged between the interactive
// surface and the background scheduler context. The two contexts never share
// mutable memory; everything crossing the boundary goes through these
// one-way messages or the durable store.
type Message interface {
	isMessage()
}

// SettingsChanged carries the full reminder settings after a user edit.
type SettingsChanged struct {
	Settings schedule.Settings
}

// OverridesChanged reports that the override map was written. Receivers must
// invalidate their read cache; no payload is carried because resolution
// always reads live.
type OverridesChanged struct{}

// ShowTestReminder asks the background context to emit a test notification.
type ShowTestReminder struct{}

func (SettingsChanged) isMessage()  {}
func (OverridesChanged) isMessage() {}
func (ShowTestReminder) isMessage() {}

const subscriberBuffer = 16

// Bus is a small in-process fan-out for cross-context messages.
type Bus struct {
	mu     sync.Mutex
	subs   []chan Message
	closed bool
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a new receiver. The returned channel is closed when
// the bus shuts down.
func (b *Bus) Subscribe() <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Message, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the message to every subscriber without blocking the
// sender. A subscriber whose buffer is full misses the message; senders in a
// burst are dropped, not queued, and the durable store remains the source of
// truth for the state the message announced.
func (b *Bus) Publish(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- m:
		default:
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
}
