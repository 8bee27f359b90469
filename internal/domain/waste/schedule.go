package waste

import "time"

// Rule describes the standing collection policy for one category.
type Rule struct {
	// Weekdays on which the category is collected.
	Weekdays []time.Weekday
	// Weeks restricts collection to these week-of-month ordinals (1-5).
	// Empty means every week.
	Weeks []int
}

// Schedule is the town's standing weekly/biweekly recurrence policy,
// immutable for the lifetime of the process.
type Schedule map[Category]Rule

// DefaultSchedule returns the published Arida city collection policy.
func DefaultSchedule() Schedule {
	return Schedule{
		CategoryBurnable: {
			Weekdays: []time.Weekday{time.Tuesday, time.Friday},
		},
		CategoryBottlesPlastic: {
			Weekdays: []time.Weekday{time.Wednesday},
			Weeks:    []int{1, 3, 5},
		},
		CategoryCansMetal: {
			Weekdays: []time.Weekday{time.Wednesday},
			Weeks:    []int{2, 4},
		},
		CategoryPETBottles: {
			Weekdays: []time.Weekday{time.Thursday},
			Weeks:    []int{2, 4},
		},
	}
}

// Evaluate returns the categories collected on the given date according to
// the recurrence policy alone. Pure and total: no error, no missing-date
// case. Matches are appended in canonical category order.
func (s Schedule) Evaluate(d Date) []Category {
	weekday := d.Weekday()
	week := d.WeekOfMonth()

	out := make([]Category, 0, len(AllCategories))
	for _, c := range AllCategories {
		rule, ok := s[c]
		if !ok {
			continue
		}
		if !containsWeekday(rule.Weekdays, weekday) {
			continue
		}
		if len(rule.Weeks) > 0 && !containsInt(rule.Weeks, week) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

func containsInt(ns []int, n int) bool {
	for _, v := range ns {
		if v == n {
			return true
		}
	}
	return false
}
