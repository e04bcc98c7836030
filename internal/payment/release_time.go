package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/merchant-settlement/internal/core/common/validation"
)

const DefaultHoldPeriod = 24 * time.Hour

// AppointmentStart combines the booked day with the start of its "HH:MM - HH:MM"
// slot in loc.
func AppointmentStart(selectedDate, timeSlot string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(validation.DateLayout, selectedDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid selected date %q: %w", selectedDate, err)
	}

	start, _, found := strings.Cut(timeSlot, "-")
	if !found {
		return time.Time{}, fmt.Errorf("invalid time slot %q", timeSlot)
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time slot start %q: %w", start, err)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// ComputeReleaseTime is the earliest moment captured funds may be released:
// the appointment start plus the hold period.
func ComputeReleaseTime(selectedDate, timeSlot string, loc *time.Location, hold time.Duration) (time.Time, error) {
	start, err := AppointmentStart(selectedDate, timeSlot, loc)
	if err != nil {
		return time.Time{}, err
	}
	if hold <= 0 {
		hold = DefaultHoldPeriod
	}
	return start.Add(hold), nil
}
