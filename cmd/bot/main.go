package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garbage_notification_bot/internal/app"
	"garbage_notification_bot/internal/domain/schedule"
	"garbage_notification_bot/internal/domain/waste"
	"garbage_notification_bot/internal/infra/bus"
	"garbage_notification_bot/internal/infra/config"
	idb "garbage_notification_bot/internal/infra/database"
	"garbage_notification_bot/internal/infra/fetch"
	"garbage_notification_bot/internal/infra/logger"
	"garbage_notification_bot/internal/infra/scheduler"
	"garbage_notification_bot/internal/infra/telegram"
	"garbage_notification_bot/internal/infra/webpush"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Garbage Notification Bot starting...")

	mainLogger := log.New(os.Stdout, "MAIN: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger.Printf("INFO: Configuration loaded. LogLevel: %s, Environment: %s, Reminder chat: %d", cfg.LogLevel, cfg.Environment, cfg.ReminderChatID)

	ctx := context.Background()
	clock := app.SystemClock{}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Println("INFO: Database connection established successfully.")

	// Initialize Persistent Store and Repositories
	kv := idb.NewKVStore(db, log.New(os.Stdout, "KV: ", log.LstdFlags))
	if err := kv.EnsureSchema(ctx); err != nil {
		mainLogger.Fatalf("FATAL: Could not ensure database schema: %v", err)
	}
	overrideRepo := idb.NewKVOverrideRepository(kv, log.New(os.Stdout, "OVERRIDES: ", log.LstdFlags))
	scheduleRepo := idb.NewKVScheduleRepository(kv)
	subscriptionRepo := idb.NewKVSubscriptionRepository(kv)
	mainLogger.Println("INFO: Repositories initialized.")

	// Core services
	messageBus := bus.New()
	resolver := app.NewResolver(overrideRepo, waste.DefaultSchedule())
	overrideService := app.NewOverrideService(
		overrideRepo,
		messageBus,
		clock,
		log.New(os.Stdout, "OVERRIDE_SVC: ", log.LstdFlags|log.Lshortfile),
		app.DefaultSeedWindow(),
	)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			log.Printf("ERROR (telebot): %v", err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				log.Printf("ERROR (telebot context): Message: %s, Sender: %d, Chat: %d", c.Text(), c.Sender().ID, c.Chat().ID)
			}
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Reminder delivery channels
	notifiers := []app.Notifier{telegram.NewTelebotAdapter(bot, cfg.ReminderChatID)}
	if cfg.WebPushEnabled() {
		pushNotifier, err := webpush.NewNotifier(
			subscriptionRepo,
			cfg.VAPIDPublicKey,
			cfg.VAPIDPrivateKey,
			cfg.VAPIDContactEmail,
			log.New(os.Stdout, "WEBPUSH: ", log.LstdFlags),
		)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create web push notifier: %v", err)
		}
		notifiers = append(notifiers, pushNotifier)
		mainLogger.Println("INFO: Web push channel enabled.")
	} else {
		mainLogger.Println("INFO: Web push channel disabled (VAPID keys not configured).")
	}

	reminderService := app.NewReminderService(
		resolver,
		notifiers,
		clock,
		log.New(os.Stdout, "REMINDER_SVC: ", log.LstdFlags|log.Lshortfile),
	)

	// Initialize ReminderScheduler
	defaultTime := schedule.SanitizeTimeOfDay(cfg.DefaultReminderTime, schedule.TimeOfDay{Hour: 7})
	reminderScheduler := scheduler.NewReminderScheduler(
		scheduleRepo,
		reminderService.FireDailyCheck,
		clock,
		log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags|log.Lshortfile),
		defaultTime,
		cfg.CronSpecWatchdog,
	)

	// Schedule feed ingestion
	ingestor := fetch.NewIngestor(
		cfg.ScheduleFeedURL,
		overrideService,
		overrideRepo,
		kv,
		clock,
		log.New(os.Stdout, "FETCH: ", log.LstdFlags),
	)

	// Register Handlers
	handlers := telegram.NewHandlers(
		resolver,
		overrideService,
		scheduleRepo,
		subscriptionRepo,
		ingestor,
		messageBus,
		clock,
		defaultTime,
		cfg.ReminderChatID,
		logger.Get().WithField("component", "telegram"),
	)
	handlers.Register(ctx, bot)
	mainLogger.Println("INFO: Command handlers registered.")

	// Seed the year-end closure window; existing records are never touched.
	if inserted, err := overrideService.SeedDefaults(ctx, clock.Now().Year()); err != nil {
		mainLogger.Printf("ERROR: Holiday seeding failed: %v", err)
	} else if inserted > 0 {
		mainLogger.Printf("INFO: Seeded %d default holiday overrides.", inserted)
	}

	// Background context: dispatch loop over the cross-context messages. The
	// interactive handlers only publish; everything stateful happens here.
	go func() {
		for msg := range messageBus.Subscribe() {
			switch m := msg.(type) {
			case bus.SettingsChanged:
				kv.Invalidate(idb.KeySchedulerState)
				if err := reminderScheduler.Apply(ctx, m.Settings); err != nil {
					mainLogger.Printf("ERROR: Failed to apply reminder settings: %v", err)
				}
			case bus.OverridesChanged:
				kv.Invalidate(idb.KeyOverrideMap)
			case bus.ShowTestReminder:
				if err := reminderService.SendTest(ctx); err != nil {
					mainLogger.Printf("ERROR: Test reminder failed: %v", err)
				}
			}
		}
	}()

	reminderScheduler.Start(ctx)

	// Refresh the published schedule if the last pull is over a month old.
	go func() {
		time.Sleep(2 * time.Second)
		if err := ingestor.RefreshIfStale(ctx, fetch.StalenessMaxAge); err != nil {
			mainLogger.Printf("WARN: Startup schedule refresh failed: %v", err)
		}
	}()

	mainLogger.Println("INFO: Application setup complete. Bot and Scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Println("INFO: Shutting down application...")
	reminderScheduler.Stop()
	messageBus.Close()
	mainLogger.Println("INFO: Application shut down gracefully.")
}
