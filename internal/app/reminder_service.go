// internal/app/reminder_service.go
package app

import (
	"context"
	"fmt"
	"log"

	"garbage_notification_bot/internal/domain/waste"
)

// Notifier delivers a reminder through one presentation channel. The call is
// one-shot and fire-and-forget; the core consumes no return value beyond
// logging the error.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

const (
	reminderTitle     = "🗑️ ゴミ出しリマインダー"
	infoTitle         = "🗑️ ゴミ出し情報"
	testTitle         = "🗑️ テスト通知"
	noCollectionBody  = "本日は年末年始・祝日等のため、ゴミの収集はありません。"
	testReminderBody  = "✅ 通知は正常に設定されています！この通知が見えれば、指定した時間にリマインダーが届きます。"
	reminderBodyShape = "【重要】今日は「%s」の日です！\n忘れずに出しましょう！"
)

// ReminderService performs the daily fire action: resolve today, compose the
// reminder, emit it through every configured channel.
type ReminderService struct {
	resolver  *Resolver
	notifiers []Notifier
	clock     Clock
	logger    *log.Logger
}

func NewReminderService(resolver *Resolver, notifiers []Notifier, clock Clock, logger *log.Logger) *ReminderService {
	return &ReminderService{
		resolver:  resolver,
		notifiers: notifiers,
		clock:     clock,
		logger:    logger,
	}
}

// FireDailyCheck resolves today's collection set and emits a reminder when
// something is collected, or a "no collection" notice when today carries an
// explicit override. An ordinary non-collection weekday emits nothing, to
// avoid daily noise.
func (s *ReminderService) FireDailyCheck(ctx context.Context) error {
	today := waste.DateOf(s.clock.Now())
	res := s.resolver.ResolveDetail(ctx, today)

	switch {
	case len(res.Categories) > 0:
		body := fmt.Sprintf(reminderBodyShape, waste.JoinLabels(res.Categories))
		s.logger.Printf("INFO: Emitting reminder for %s: %s", today, waste.JoinLabels(res.Categories))
		return s.emit(ctx, reminderTitle, body)
	case res.Overridden:
		s.logger.Printf("INFO: Emitting no-collection notice for %s (override: %s).", today, res.Note)
		return s.emit(ctx, infoTitle, noCollectionBody)
	default:
		s.logger.Printf("INFO: No collection today (%s), nothing to emit.", today)
		return nil
	}
}

// SendTest emits a test notification through every channel.
func (s *ReminderService) SendTest(ctx context.Context) error {
	return s.emit(ctx, testTitle, testReminderBody)
}

// emit sends to all channels. One channel failing never prevents the others;
// the first error is returned for logging only.
func (s *ReminderService) emit(ctx context.Context, title, body string) error {
	var firstErr error
	for _, n := range s.notifiers {
		if err := n.Send(ctx, title, body); err != nil {
			s.logger.Printf("ERROR: Notifier %T failed: %v", n, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("notifier %T failed: %w", n, err)
			}
		}
	}
	return firstErr
}
