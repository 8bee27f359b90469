// internal/domain/schedule/schedule.go
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock reminder time.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses an "HH:MM" string. Malformed input is rejected with
// a descriptive error; callers that must not fail substitute a safe default
// via SanitizeTimeOfDay instead.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (expected HH:MM)", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	tod := TimeOfDay{Hour: hour, Minute: minute}
	if !tod.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return tod, nil
}

// SanitizeTimeOfDay parses s, falling back to the given default when the
// input is malformed. A broken schedule is worse than a wrong-but-valid one.
func SanitizeTimeOfDay(s string, fallback TimeOfDay) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		return fallback
	}
	return tod
}

// Valid reports whether the time of day is within 00:00-23:59.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Settings is what the interactive surface is allowed to change: the enabled
// flag and the reminder time. Everything else in State is owned by the
// scheduler itself.
type Settings struct {
	Enabled bool      `json:"enabled"`
	Time    TimeOfDay `json:"time"`
}

// State is the persisted scheduler record. It is written durably before a
// timer is considered armed, so restart recovery has a single source of
// truth independent of in-memory timer handles.
type State struct {
	Settings
	// NextFire is the instant the armed timer is due, nil while disabled.
	NextFire *time.Time `json:"next_fire,omitempty"`
	// Generation increments on every (re)schedule. A timer fire is honored
	// only if the generation it was armed with still matches the persisted
	// value; otherwise it is a stale timer from a superseded schedule.
	Generation int64 `json:"generation"`
}
