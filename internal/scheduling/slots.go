// Package scheduling turns a provider schedule into bookable intervals and
// checks candidate intervals against existing bookings.
package scheduling

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"booking-service/internal/models"
)

const (
	ClockLayout = "15:04"
	DateLayout  = "2006-01-02"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// GenerateSlots yields consecutive slots of durationMinutes inside the
// working window of date. A slot that would run past closing time is not
// offered. The sequence is empty on closed days and for misconfigured
// schedules.
func GenerateSlots(s models.Schedule, date time.Time, durationMinutes int) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if durationMinutes <= 0 {
			return
		}

		start, end, ok := Window(s, date)
		if !ok {
			return
		}

		d := time.Duration(durationMinutes) * time.Minute
		for cur := start; !cur.Add(d).After(end); cur = cur.Add(d) {
			if !yield(Interval{Start: cur, End: cur.Add(d)}) {
				return
			}
		}
	}
}

// Window returns the working window for the calendar day of date, in
// date's location. ok is false when the provider is closed that day or the
// schedule cannot produce a non-empty window.
func Window(s models.Schedule, date time.Time) (start, end time.Time, ok bool) {
	if !IsWorkDay(s, date) {
		return time.Time{}, time.Time{}, false
	}

	sh, sm, err := parseClock(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	eh, em, err := parseClock(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	loc := date.Location()
	start = time.Date(date.Year(), date.Month(), date.Day(), sh, sm, 0, 0, loc)
	end = time.Date(date.Year(), date.Month(), date.Day(), eh, em, 0, 0, loc)

	if !end.After(start) {
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}

// IsWorkDay reports whether date falls on a work day that is not a day off.
func IsWorkDay(s models.Schedule, date time.Time) bool {
	if !slices.Contains(s.WorkDays, int(date.Weekday())) {
		return false
	}

	return !slices.Contains(s.DaysOff, date.Format(DateLayout))
}

// Fits reports whether iv lies entirely inside the working window of the
// day it starts on.
func Fits(s models.Schedule, iv Interval) bool {
	if !iv.End.After(iv.Start) {
		return false
	}

	start, end, ok := Window(s, iv.Start)
	if !ok {
		return false
	}

	return !iv.Start.Before(start) && !iv.End.After(end)
}

// Validate checks the schedule invariants enforced when a provider edits
// its schedule.
func Validate(s models.Schedule) error {
	var errs []error

	for _, d := range s.WorkDays {
		if d < 0 || d > 6 {
			errs = append(errs, fmt.Errorf("work day %d out of range 0..6", d))
		}
	}

	sh, sm, startErr := parseClock(s.StartTime)
	if startErr != nil {
		errs = append(errs, fmt.Errorf("start_time: %w", startErr))
	}
	eh, em, endErr := parseClock(s.EndTime)
	if endErr != nil {
		errs = append(errs, fmt.Errorf("end_time: %w", endErr))
	}
	if startErr == nil && endErr == nil && sh*60+sm >= eh*60+em {
		errs = append(errs, errors.New("start_time must be before end_time"))
	}

	if s.SlotDurationMinutes <= 0 {
		errs = append(errs, errors.New("slot_duration_minutes must be positive"))
	}

	for _, d := range s.DaysOff {
		if _, err := time.Parse(DateLayout, d); err != nil {
			errs = append(errs, fmt.Errorf("day off %q: %w", d, err))
		}
	}

	return errors.Join(errs...)
}

func parseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse(ClockLayout, v)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
