package scheduler

import (
	"fmt"
	"time"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// dueWindow is the tolerance around a schedule's HH:MM inside which a
// polling pass considers it due.
const dueWindow = 5 * time.Minute

// IsDue reports whether now falls inside the window centered on the
// schedule's time and the frequency rule matches: daily always, weekly on
// Mondays, monthly on the first of the month.
func IsDue(schedule models.CleanupSchedule, now time.Time) bool {
	hour, minute, err := parseClock(schedule.Time)
	if err != nil {
		return false
	}

	switch schedule.Frequency {
	case enums.ScheduleFrequencyDaily:
	case enums.ScheduleFrequencyWeekly:
		if now.Weekday() != time.Monday {
			return false
		}
	case enums.ScheduleFrequencyMonthly:
		if now.Day() != 1 {
			return false
		}
	default:
		return false
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= dueWindow/2
}

// NextExecution returns today's scheduled time when still in the future,
// otherwise the next occurrence per frequency (months normalize to day 1).
func NextExecution(schedule models.CleanupSchedule, now time.Time) (time.Time, error) {
	hour, minute, err := parseClock(schedule.Time)
	if err != nil {
		return time.Time{}, err
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.After(now) && frequencyMatches(schedule.Frequency, next) {
		return next, nil
	}

	switch schedule.Frequency {
	case enums.ScheduleFrequencyDaily:
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
	case enums.ScheduleFrequencyWeekly:
		for !next.After(now) || next.Weekday() != time.Monday {
			next = next.AddDate(0, 0, 1)
		}
	case enums.ScheduleFrequencyMonthly:
		next = time.Date(now.Year(), now.Month(), 1, hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", schedule.Frequency)
	}
	return next, nil
}

func frequencyMatches(freq enums.ScheduleFrequency, t time.Time) bool {
	switch freq {
	case enums.ScheduleFrequencyDaily:
		return true
	case enums.ScheduleFrequencyWeekly:
		return t.Weekday() == time.Monday
	case enums.ScheduleFrequencyMonthly:
		return t.Day() == 1
	default:
		return false
	}
}

func parseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", value)
	}
	return t.Hour(), t.Minute(), nil
}
