package enums

import "fmt"

// ScheduleFrequency controls how often a cleanup schedule fires.
type ScheduleFrequency string

const (
	ScheduleFrequencyDaily   ScheduleFrequency = "daily"
	ScheduleFrequencyWeekly  ScheduleFrequency = "weekly"
	ScheduleFrequencyMonthly ScheduleFrequency = "monthly"
)

var validScheduleFrequencies = []ScheduleFrequency{
	ScheduleFrequencyDaily,
	ScheduleFrequencyWeekly,
	ScheduleFrequencyMonthly,
}

// String returns the literal string for the frequency.
func (s ScheduleFrequency) String() string {
	return string(s)
}

// IsValid reports whether the frequency is known.
func (s ScheduleFrequency) IsValid() bool {
	for _, candidate := range validScheduleFrequencies {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseScheduleFrequency converts raw input into a ScheduleFrequency.
func ParseScheduleFrequency(value string) (ScheduleFrequency, error) {
	for _, candidate := range validScheduleFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid schedule frequency %q", value)
}
