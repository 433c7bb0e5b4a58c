package scheduler

import (
	"testing"
	"time"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// 2026-08-31 is a Monday.
var monday = time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)

func at(base time.Time, hour, minute, second int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, second, 0, base.Location())
}

func TestIsDueWeeklyMondayWindow(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyWeekly,
		Time:      "02:00",
		Enabled:   true,
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"on the dot", at(monday, 2, 0, 0), true},
		{"just before", at(monday, 1, 58, 0), true},
		{"just after", at(monday, 2, 2, 0), true},
		{"window edge", at(monday, 2, 2, 30), true},
		{"too early", at(monday, 1, 50, 0), false},
		{"too late", at(monday, 2, 10, 0), false},
		{"tuesday", at(monday.AddDate(0, 0, 1), 2, 0, 0), false},
	}

	for _, tc := range cases {
		if got := IsDue(schedule, tc.now); got != tc.want {
			t.Errorf("%s: IsDue(%s) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestIsDueDailyIgnoresWeekday(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyDaily,
		Time:      "03:30",
	}
	for day := 0; day < 7; day++ {
		now := at(monday.AddDate(0, 0, day), 3, 30, 0)
		if !IsDue(schedule, now) {
			t.Errorf("daily schedule should be due on %s", now.Weekday())
		}
	}
}

func TestIsDueMonthlyFirstOfMonthOnly(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyMonthly,
		Time:      "04:00",
	}
	first := time.Date(2026, time.September, 1, 4, 0, 0, 0, time.UTC)
	if !IsDue(schedule, first) {
		t.Fatal("monthly schedule should be due on the 1st")
	}
	second := first.AddDate(0, 0, 1)
	if IsDue(schedule, second) {
		t.Fatal("monthly schedule must not be due on the 2nd")
	}
}

func TestIsDueInvalidClock(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyDaily,
		Time:      "25:99",
	}
	if IsDue(schedule, monday) {
		t.Fatal("invalid clock must never be due")
	}
}

func TestNextExecutionDaily(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyDaily,
		Time:      "02:00",
	}

	before := at(monday, 1, 0, 0)
	next, err := NextExecution(schedule, before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(at(monday, 2, 0, 0)) {
		t.Fatalf("expected today's slot, got %s", next)
	}

	after := at(monday, 3, 0, 0)
	next, err = NextExecution(schedule, after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(at(monday.AddDate(0, 0, 1), 2, 0, 0)) {
		t.Fatalf("expected tomorrow's slot, got %s", next)
	}
}

func TestNextExecutionWeeklyLandsOnMonday(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyWeekly,
		Time:      "02:00",
	}

	wednesday := at(monday.AddDate(0, 0, 2), 12, 0, 0)
	next, err := NextExecution(schedule, wednesday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Weekday() != time.Monday {
		t.Fatalf("expected a Monday, got %s", next.Weekday())
	}
	if !next.Equal(at(monday.AddDate(0, 0, 7), 2, 0, 0)) {
		t.Fatalf("expected next Monday 02:00, got %s", next)
	}
}

func TestNextExecutionMonthlyNormalizesToDayOne(t *testing.T) {
	schedule := models.CleanupSchedule{
		Frequency: enums.ScheduleFrequencyMonthly,
		Time:      "04:30",
	}

	midMonth := time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)
	next, err := NextExecution(schedule, midMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.September, 1, 4, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}
