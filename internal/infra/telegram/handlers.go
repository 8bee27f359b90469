// internal/infra/telegram/handlers.go
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"garbage_notification_bot/internal/app"
	"garbage_notification_bot/internal/domain/override"
	"garbage_notification_bot/internal/domain/push"
	"garbage_notification_bot/internal/domain/schedule"
	"garbage_notification_bot/internal/domain/waste"
	"garbage_notification_bot/internal/infra/bus"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// ScheduleIngestor triggers a pull of the published schedule feed.
type ScheduleIngestor interface {
	Ingest(ctx context.Context) (int, error)
}

const defaultListRangeDays = 60

// Handlers wires the bot commands to the application services. Handlers only
// call services and publish bus messages; they never duplicate resolution or
// filtering logic, and they never write scheduler internals directly.
type Handlers struct {
	resolver     *app.Resolver
	overrides    *app.OverrideService
	scheduleRepo schedule.Repository
	subs         push.Repository
	ingestor     ScheduleIngestor
	messageBus   *bus.Bus
	clock        app.Clock
	defaultTime  schedule.TimeOfDay
	ownerID      int64
	logger       *logrus.Entry
}

func NewHandlers(
	resolver *app.Resolver,
	overrides *app.OverrideService,
	scheduleRepo schedule.Repository,
	subs push.Repository,
	ingestor ScheduleIngestor,
	messageBus *bus.Bus,
	clock app.Clock,
	defaultTime schedule.TimeOfDay,
	ownerID int64,
	logger *logrus.Entry,
) *Handlers {
	return &Handlers{
		resolver:     resolver,
		overrides:    overrides,
		scheduleRepo: scheduleRepo,
		subs:         subs,
		ingestor:     ingestor,
		messageBus:   messageBus,
		clock:        clock,
		defaultTime:  defaultTime,
		ownerID:      ownerID,
		logger:       logger,
	}
}

// Register attaches all command handlers to the bot.
func (h *Handlers) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", h.authorized("/start", h.handleHelp(ctx)))
	b.Handle("/help", h.authorized("/help", h.handleHelp(ctx)))
	b.Handle("/today", h.authorized("/today", h.handleResolve(ctx, 0)))
	b.Handle("/tomorrow", h.authorized("/tomorrow", h.handleResolve(ctx, 1)))
	b.Handle("/override", h.authorized("/override", h.handleOverride(ctx)))
	b.Handle("/cancel_override", h.authorized("/cancel_override", h.handleCancelOverride(ctx)))
	b.Handle("/list_overrides", h.authorized("/list_overrides", h.handleListOverrides(ctx)))
	b.Handle("/remind_at", h.authorized("/remind_at", h.handleRemindAt(ctx)))
	b.Handle("/remind_on", h.authorized("/remind_on", h.handleRemindToggle(ctx, true)))
	b.Handle("/remind_off", h.authorized("/remind_off", h.handleRemindToggle(ctx, false)))
	b.Handle("/test_reminder", h.authorized("/test_reminder", h.handleTestReminder()))
	b.Handle("/fetch_schedule", h.authorized("/fetch_schedule", h.handleFetchSchedule(ctx)))
	b.Handle("/subscribe_push", h.authorized("/subscribe_push", h.handleSubscribePush(ctx)))
}

// authorized restricts commands to the configured owner chat.
func (h *Handlers) authorized(command string, next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		logCtx := h.logger.WithFields(logrus.Fields{"command": command, "sender_id": c.Sender().ID})
		if c.Sender().ID != h.ownerID {
			logCtx.Warn("Unauthorized access attempt")
			return c.Send("このボットを利用する権限がありません。")
		}
		logCtx.Info("Command received")
		return next(c)
	}
}

func (h *Handlers) handleHelp(_ context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		var help strings.Builder
		help.WriteString("ゴミ出しリマインダーのコマンド一覧:\n\n")
		help.WriteString("`/today` - 今日の収集品目を表示\n")
		help.WriteString("`/tomorrow` - 明日の収集品目を表示\n")
		help.WriteString("`/override <YYYY-MM-DD> <品目,...|none> [メモ]` - 特別日程を登録\n")
		help.WriteString("`/cancel_override <YYYY-MM-DD>` - 特別日程を削除\n")
		help.WriteString(fmt.Sprintf("`/list_overrides [日数]` - 今後の特別日程を表示 (既定 %d 日)\n", defaultListRangeDays))
		help.WriteString("`/remind_at <HH:MM>` - 通知時刻を設定\n")
		help.WriteString("`/remind_on` / `/remind_off` - 通知の有効/無効\n")
		help.WriteString("`/test_reminder` - テスト通知を送信\n")
		help.WriteString("`/fetch_schedule` - 公開スケジュールを取り込み\n")
		help.WriteString("`/subscribe_push <購読JSON>` - Webプッシュ購読を登録\n\n")
		help.WriteString(fmt.Sprintf("品目: %s", strings.Join(categoryIdentifiers(), ", ")))
		return c.Send(help.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}

func (h *Handlers) handleResolve(ctx context.Context, dayOffset int) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		date := waste.DateOf(h.clock.Now()).AddDays(dayOffset)
		res := h.resolver.ResolveDetail(ctx, date)
		return c.Send(formatResolution(date, res))
	}
}

func (h *Handlers) handleOverride(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		args := c.Args()
		if len(args) < 2 {
			return c.Send("使い方: /override <YYYY-MM-DD> <品目,...|none> [メモ]")
		}
		date, err := waste.ParseDate(args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("日付の形式が正しくありません: %v", err))
		}
		categories, err := parseCategoryList(args[1])
		if err != nil {
			return c.Send(fmt.Sprintf("品目の指定が正しくありません: %v", err))
		}
		note := strings.Join(args[2:], " ")
		if note == "" {
			note = "手動設定"
		}

		if err := h.overrides.Set(ctx, date, categories, note, override.OriginManual); err != nil {
			h.logger.WithError(err).Error("Failed to set override")
			return c.Send(fmt.Sprintf("特別日程の保存に失敗しました: %v", err))
		}
		return c.Send(fmt.Sprintf("%s の特別日程を登録しました: %s", date, describeCategories(categories)))
	}
}

func (h *Handlers) handleCancelOverride(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("使い方: /cancel_override <YYYY-MM-DD>")
		}
		date, err := waste.ParseDate(args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("日付の形式が正しくありません: %v", err))
		}
		if err := h.overrides.Remove(ctx, date); err != nil {
			h.logger.WithError(err).Error("Failed to remove override")
			return c.Send(fmt.Sprintf("特別日程の削除に失敗しました: %v", err))
		}
		return c.Send(fmt.Sprintf("%s の特別日程を削除しました。", date))
	}
}

func (h *Handlers) handleListOverrides(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		days := defaultListRangeDays
		if args := c.Args(); len(args) == 1 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed < 1 {
				return c.Send("日数は正の整数で指定してください。")
			}
			days = parsed
		}

		from := waste.DateOf(h.clock.Now())
		to := from.AddDays(days)
		entries, err := h.overrides.ListInRange(ctx, from, to)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list overrides")
			return c.Send(fmt.Sprintf("特別日程の取得に失敗しました: %v", err))
		}
		if len(entries) == 0 {
			return c.Send(fmt.Sprintf("今後 %d 日間の特別日程はありません。", days))
		}

		var out strings.Builder
		out.WriteString(fmt.Sprintf("今後 %d 日間の特別日程:\n", days))
		for _, e := range entries {
			out.WriteString(fmt.Sprintf("・%s: %s", e.Date, describeCategories(e.Record.Categories)))
			if e.Record.Note != "" {
				out.WriteString(fmt.Sprintf(" (%s)", e.Record.Note))
			}
			out.WriteString("\n")
		}
		return c.Send(out.String())
	}
}

func (h *Handlers) handleRemindAt(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("使い方: /remind_at <HH:MM>")
		}
		tod, err := schedule.ParseTimeOfDay(args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("時刻の形式が正しくありません: %v", err))
		}

		// Editing the time keeps the current enabled flag; turning reminders
		// on is /remind_on's job.
		state, err := h.scheduleRepo.Load(ctx)
		if err != nil {
			h.logger.WithError(err).Warn("Could not load scheduler state, treating reminders as disabled")
			state = schedule.State{}
		}

		settings := schedule.Settings{Enabled: state.Enabled, Time: tod}
		h.messageBus.Publish(bus.SettingsChanged{Settings: settings})
		if settings.Enabled {
			return c.Send(fmt.Sprintf("通知時刻を %s に設定しました。", tod))
		}
		return c.Send(fmt.Sprintf("通知時刻を %s に設定しました。通知は無効のままです (/remind_on で有効化)。", tod))
	}
}

func (h *Handlers) handleRemindToggle(ctx context.Context, enabled bool) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		state, err := h.scheduleRepo.Load(ctx)
		if err != nil {
			h.logger.WithError(err).Warn("Could not load scheduler state, using default time")
			state = schedule.State{}
		}
		tod := state.Time
		if !tod.Valid() || (tod == schedule.TimeOfDay{}) {
			tod = h.defaultTime
		}

		h.messageBus.Publish(bus.SettingsChanged{Settings: schedule.Settings{Enabled: enabled, Time: tod}})
		if enabled {
			return c.Send(fmt.Sprintf("通知を有効にしました (毎日 %s)。", tod))
		}
		return c.Send("通知を無効にしました。")
	}
}

func (h *Handlers) handleTestReminder() telebot.HandlerFunc {
	return func(c telebot.Context) error {
		h.messageBus.Publish(bus.ShowTestReminder{})
		return c.Send("テスト通知を送信しました。")
	}
}

func (h *Handlers) handleFetchSchedule(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		applied, err := h.ingestor.Ingest(ctx)
		if err != nil {
			h.logger.WithError(err).Error("Schedule ingestion failed")
			return c.Send(fmt.Sprintf("スケジュールの取り込みに失敗しました: %v", err))
		}
		return c.Send(fmt.Sprintf("スケジュールを取り込みました (%d 件の特別日程を更新)。", applied))
	}
}

func (h *Handlers) handleSubscribePush(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		payload := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/subscribe_push"))
		if payload == "" {
			return c.Send("使い方: /subscribe_push <購読JSON>")
		}

		// Accepts the JSON produced by PushSubscription.toJSON() in a browser.
		var raw struct {
			Endpoint string `json:"endpoint"`
			Keys     struct {
				P256dh string `json:"p256dh"`
				Auth   string `json:"auth"`
			} `json:"keys"`
		}
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return c.Send(fmt.Sprintf("購読JSONの形式が正しくありません: %v", err))
		}
		if raw.Endpoint == "" || raw.Keys.P256dh == "" || raw.Keys.Auth == "" {
			return c.Send("購読JSONに endpoint / keys.p256dh / keys.auth が必要です。")
		}

		sub := push.Subscription{Endpoint: raw.Endpoint, P256dh: raw.Keys.P256dh, Auth: raw.Keys.Auth}
		if err := h.subs.Add(ctx, sub); err != nil {
			h.logger.WithError(err).Error("Failed to store push subscription")
			return c.Send(fmt.Sprintf("購読の保存に失敗しました: %v", err))
		}
		return c.Send("Webプッシュ購読を登録しました。")
	}
}

func formatResolution(date waste.Date, res app.Resolution) string {
	if len(res.Categories) > 0 {
		return fmt.Sprintf("%s の収集品目: %s", date, waste.JoinLabels(res.Categories))
	}
	if res.Overridden {
		note := res.Note
		if note == "" {
			note = "特別日程"
		}
		return fmt.Sprintf("%s は収集がありません (%s)。", date, note)
	}
	return fmt.Sprintf("%s は収集がありません。", date)
}

// parseCategoryList parses a comma-separated category identifier list; the
// keyword "none" yields the explicit empty set.
func parseCategoryList(s string) ([]waste.Category, error) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return []waste.Category{}, nil
	}
	parts := strings.Split(s, ",")
	categories := make([]waste.Category, 0, len(parts))
	for _, p := range parts {
		c, err := waste.ParseCategory(p)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func describeCategories(categories []waste.Category) string {
	if len(categories) == 0 {
		return "収集なし"
	}
	return waste.JoinLabels(categories)
}

func categoryIdentifiers() []string {
	ids := make([]string, 0, len(waste.AllCategories))
	for _, c := range waste.AllCategories {
		ids = append(ids, string(c))
	}
	return ids
}
