package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"garbage_notification_bot/internal/app"
	"garbage_notification_bot/internal/domain/schedule"

	"github.com/robfig/cron/v3"
)

// FireFunc is the daily reminder check invoked when the armed timer elapses.
type FireFunc func(ctx context.Context) error

// defaultRearmDelay is the pause between a fire and the re-arm for the next
// day, so a throwing emitter cannot tight-loop the scheduler.
const defaultRearmDelay = time.Second

// ReminderScheduler is a persisted single-slot timer. The deadline and its
// generation tag are written durably before a timer counts as armed, so a
// process restart recovers from the stored record alone; in-memory timer
// handles do not survive restarts by definition.
type ReminderScheduler struct {
	repo         schedule.Repository
	fire         FireFunc
	clock        app.Clock
	logger       *log.Logger
	defaultTime  schedule.TimeOfDay
	watchdogSpec string
	rearmDelay   time.Duration
	cronEngine   *cron.Cron

	mu       sync.Mutex
	inFlight bool
	timer    *time.Timer
	armedAt  time.Time
	armedGen int64
}

func NewReminderScheduler(
	repo schedule.Repository,
	fire FireFunc,
	clock app.Clock,
	logger *log.Logger,
	defaultTime schedule.TimeOfDay,
	watchdogSpec string, // e.g. "0 12 * * *" (noon daily)
) *ReminderScheduler {
	return &ReminderScheduler{
		repo:         repo,
		fire:         fire,
		clock:        clock,
		logger:       logger,
		defaultTime:  defaultTime,
		watchdogSpec: watchdogSpec,
		rearmDelay:   defaultRearmDelay,
		cronEngine:   cron.New(cron.WithLocation(time.Local)),
	}
}

// Start performs restart recovery and launches the daily watchdog job.
//
// If the persisted state is enabled with a deadline still in the future, the
// timer is re-armed for exactly that instant carrying the stored generation;
// recomputing here would drift the fire time forward on every restart. An
// elapsed deadline means the process was down past it: the daily check runs
// immediately as a catch-up and the next day's timer is armed. A disabled
// state stays disabled.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.logger.Println("INFO: Starting reminder scheduler...")

	state, err := s.repo.Load(ctx)
	switch {
	case err != nil:
		s.logger.Printf("WARN: Could not load scheduler state, staying disabled until next settings change: %v", err)
	case !state.Enabled:
		s.logger.Println("INFO: Reminders are disabled. No timer armed.")
	case state.NextFire != nil && state.NextFire.After(s.clock.Now()):
		s.armAt(*state.NextFire, state.Generation)
		s.logger.Printf("INFO: Resumed pending timer for %s (generation %d).", state.NextFire.Format(time.RFC3339), state.Generation)
	default:
		s.logger.Println("INFO: Persisted deadline already elapsed. Running catch-up check.")
		s.onFire(state.Generation)
	}

	_, err = s.cronEngine.AddFunc(s.watchdogSpec, s.watchdog)
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add scheduler watchdog cron job: %v", err)
	}
	s.cronEngine.Start()
	s.logger.Println("INFO: Reminder scheduler started.")
}

// Apply reacts to a settings change: disable cancels the armed timer and
// clears the deadline; enable (or a time edit while enabled) computes a
// fresh deadline, persists it, and re-arms. Concurrent calls during a burst
// of settings messages are dropped, not queued; the most recent completed
// call wins.
func (s *ReminderScheduler) Apply(ctx context.Context, settings schedule.Settings) error {
	if !s.tryBegin() {
		s.logger.Println("INFO: Schedule computation already in flight. Dropping settings change.")
		return nil
	}
	defer s.end()

	state, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Printf("WARN: Could not load scheduler state, starting from defaults: %v", err)
		state = schedule.State{}
	}
	state.Settings = settings

	if !settings.Enabled {
		s.cancelTimer()
		state.NextFire = nil
		state.Generation++
		if err := s.repo.Save(ctx, state); err != nil {
			s.logger.Printf("ERROR: Failed to persist disabled scheduler state: %v", err)
			return err
		}
		s.logger.Println("INFO: Reminders disabled; timer cancelled.")
		return nil
	}

	return s.program(ctx, state)
}

// program computes the next deadline from state.Settings, persists it with a
// bumped generation, then arms the timer. Persist-then-arm order is what
// makes the schedule restart-safe.
func (s *ReminderScheduler) program(ctx context.Context, state schedule.State) error {
	if !state.Time.Valid() {
		s.logger.Printf("WARN: Invalid reminder time %+v, falling back to default %s.", state.Time, s.defaultTime)
		state.Time = s.defaultTime
	}

	next := computeNextInstant(state.Time, s.clock.Now())
	state.NextFire = &next
	state.Generation++

	if err := s.repo.Save(ctx, state); err != nil {
		s.logger.Printf("ERROR: Failed to persist scheduler state, not arming: %v", err)
		return err
	}
	s.armAt(next, state.Generation)
	return nil
}

// computeNextInstant builds today's candidate at the configured wall-clock
// time; a candidate at or before now moves to the same time tomorrow. The
// result is always strictly in the future at the moment of computation.
func computeNextInstant(tod schedule.TimeOfDay, now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// onFire runs when a timer elapses. The fire is honored only if the
// generation it was armed with still matches the persisted state; otherwise
// it is a stale timer from a superseded schedule and is discarded silently.
// The re-arm afterwards always reloads the persisted state: a settings change
// applied while the fire action or the delay ran must win over the snapshot
// this fire was armed with.
func (s *ReminderScheduler) onFire(generation int64) {
	ctx := context.Background()

	state, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Printf("ERROR: Could not load scheduler state at fire time, discarding fire: %v", err)
		return
	}
	if !state.Enabled {
		s.logger.Println("INFO: Timer fired while reminders are disabled. Ignoring.")
		return
	}
	if state.Generation != generation {
		s.logger.Printf("INFO: Discarding stale timer (armed generation %d, persisted %d).", generation, state.Generation)
		return
	}

	if err := s.fire(ctx); err != nil {
		s.logger.Printf("ERROR: Reminder emission failed: %v", err)
	}

	time.Sleep(s.rearmDelay)

	if !s.tryBegin() {
		s.logger.Println("INFO: Schedule computation already in flight after fire. Skipping re-arm.")
		return
	}
	defer s.end()

	state, err = s.repo.Load(ctx)
	if err != nil {
		s.logger.Printf("ERROR: Could not reload scheduler state after fire, daily watchdog will retry: %v", err)
		return
	}
	if !state.Enabled {
		s.logger.Println("INFO: Reminders were disabled during the fire. Not re-arming.")
		return
	}
	if err := s.program(ctx, state); err != nil {
		s.logger.Printf("ERROR: Re-arm after fire failed, daily watchdog will retry: %v", err)
	}
}

// watchdog runs once a day and re-derives the schedule from persisted
// settings whenever the deadline is missing, elapsed, or its process-local
// timer was lost. A single transient failure can therefore never leave the
// scheduler stuck disabled.
func (s *ReminderScheduler) watchdog() {
	ctx := context.Background()

	state, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Printf("ERROR: Watchdog could not load scheduler state: %v", err)
		return
	}
	if !state.Enabled {
		return
	}

	s.mu.Lock()
	armed := s.timer != nil
	s.mu.Unlock()
	deadlineOK := state.NextFire != nil && state.NextFire.After(s.clock.Now())

	if armed && deadlineOK {
		return
	}
	if deadlineOK {
		s.logger.Println("WARN: Watchdog found a valid deadline without an armed timer. Re-arming.")
		s.armAt(*state.NextFire, state.Generation)
		return
	}

	s.logger.Println("WARN: Watchdog found no usable deadline. Re-deriving schedule.")
	if !s.tryBegin() {
		return
	}
	defer s.end()
	if err := s.program(ctx, state); err != nil {
		s.logger.Printf("ERROR: Watchdog reschedule failed: %v", err)
	}
}

// Stop cancels the armed timer and shuts down the watchdog.
func (s *ReminderScheduler) Stop() {
	s.logger.Println("INFO: Stopping reminder scheduler...")
	s.cancelTimer()
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Println("INFO: Reminder scheduler stopped.")
}

func (s *ReminderScheduler) armAt(at time.Time, generation int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, func() { s.onFire(generation) })
	s.armedAt = at
	s.armedGen = generation
	s.logger.Printf("INFO: Timer armed for %s (generation %d).", at.Format(time.RFC3339), generation)
}

func (s *ReminderScheduler) cancelTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *ReminderScheduler) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *ReminderScheduler) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
