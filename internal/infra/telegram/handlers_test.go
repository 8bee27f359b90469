package telegram

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"garbage_notification_bot/internal/app"
	"garbage_notification_bot/internal/domain/schedule"
	"garbage_notification_bot/internal/infra/bus"
)

type memScheduleRepo struct {
	state   schedule.State
	loadErr error
}

func (r *memScheduleRepo) Load(_ context.Context) (schedule.State, error) {
	if r.loadErr != nil {
		return schedule.State{}, r.loadErr
	}
	return r.state, nil
}

func (r *memScheduleRepo) Save(_ context.Context, state schedule.State) error {
	r.state = state
	return nil
}

// fakeContext stubs just the telebot.Context surface the handlers touch.
type fakeContext struct {
	telebot.Context
	args []string
	sent []string
}

func (c *fakeContext) Args() []string { return c.args }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

func newTestHandlers(repo schedule.Repository) (*Handlers, <-chan bus.Message) {
	messageBus := bus.New()
	received := messageBus.Subscribe()
	l := logrus.New()
	l.SetOutput(io.Discard)
	h := NewHandlers(
		nil, nil,
		repo,
		nil, nil,
		messageBus,
		app.SystemClock{},
		schedule.TimeOfDay{Hour: 7},
		1,
		l.WithField("component", "telegram"),
	)
	return h, received
}

func receiveSettings(t *testing.T, ch <-chan bus.Message) schedule.Settings {
	t.Helper()
	select {
	case msg := <-ch:
		changed, ok := msg.(bus.SettingsChanged)
		require.True(t, ok, "expected SettingsChanged, got %T", msg)
		return changed.Settings
	default:
		t.Fatal("no message published")
		return schedule.Settings{}
	}
}

func TestRemindAtKeepsRemindersDisabled(t *testing.T) {
	repo := &memScheduleRepo{state: schedule.State{
		Settings: schedule.Settings{Enabled: false, Time: schedule.TimeOfDay{Hour: 9}},
	}}
	h, received := newTestHandlers(repo)
	c := &fakeContext{args: []string{"20:15"}}

	require.NoError(t, h.handleRemindAt(context.Background())(c))

	settings := receiveSettings(t, received)
	assert.False(t, settings.Enabled)
	assert.Equal(t, schedule.TimeOfDay{Hour: 20, Minute: 15}, settings.Time)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "無効のまま")
}

func TestRemindAtKeepsRemindersEnabled(t *testing.T) {
	repo := &memScheduleRepo{state: schedule.State{
		Settings: schedule.Settings{Enabled: true, Time: schedule.TimeOfDay{Hour: 9}},
	}}
	h, received := newTestHandlers(repo)
	c := &fakeContext{args: []string{"20:15"}}

	require.NoError(t, h.handleRemindAt(context.Background())(c))

	settings := receiveSettings(t, received)
	assert.True(t, settings.Enabled)
	assert.Equal(t, schedule.TimeOfDay{Hour: 20, Minute: 15}, settings.Time)
}

func TestRemindAtRejectsMalformedTime(t *testing.T) {
	h, received := newTestHandlers(&memScheduleRepo{})
	c := &fakeContext{args: []string{"25:99"}}

	require.NoError(t, h.handleRemindAt(context.Background())(c))

	select {
	case msg := <-received:
		t.Fatalf("unexpected message published: %T", msg)
	default:
	}
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "時刻の形式")
}

func TestRemindToggleUsesStoredTime(t *testing.T) {
	repo := &memScheduleRepo{state: schedule.State{
		Settings: schedule.Settings{Enabled: false, Time: schedule.TimeOfDay{Hour: 9, Minute: 30}},
	}}
	h, received := newTestHandlers(repo)
	c := &fakeContext{}

	require.NoError(t, h.handleRemindToggle(context.Background(), true)(c))

	settings := receiveSettings(t, received)
	assert.True(t, settings.Enabled)
	assert.Equal(t, schedule.TimeOfDay{Hour: 9, Minute: 30}, settings.Time)
}

func TestRemindToggleFallsBackToDefaultTime(t *testing.T) {
	h, received := newTestHandlers(&memScheduleRepo{})
	c := &fakeContext{}

	require.NoError(t, h.handleRemindToggle(context.Background(), true)(c))

	settings := receiveSettings(t, received)
	assert.True(t, settings.Enabled)
	assert.Equal(t, schedule.TimeOfDay{Hour: 7}, settings.Time)
}
