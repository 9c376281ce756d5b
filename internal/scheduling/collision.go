package scheduling

import (
	"iter"
	"time"

	"booking-service/internal/models"
)

// Overlaps reports whether two half-open intervals share an instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// IsFree reports whether candidate collides with none of the scheduled
// bookings. Completed and canceled bookings never block.
func IsFree(candidate Interval, bookings []*models.Booking) bool {
	for _, b := range bookings {
		if b.Status != models.BookingScheduled {
			continue
		}
		if Overlaps(candidate, Interval{Start: b.StartTime, End: b.EndTime}) {
			return false
		}
	}
	return true
}

// AvailableSlots yields the generated slots of date that are free against
// bookings.
func AvailableSlots(s models.Schedule, date time.Time, durationMinutes int, bookings []*models.Booking) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		for slot := range GenerateSlots(s, date, durationMinutes) {
			if !IsFree(slot, bookings) {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}
}
