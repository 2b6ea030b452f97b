package room

import "time"

// The working window is fixed global policy: availability is computed for
// 08:00-18:00 local time regardless of room.
const (
	WorkdayStartHour = 8
	WorkdayEndHour   = 18
)

// workingWindow returns the bookable window for a calendar day.
func workingWindow(day time.Time) Slot {
	return Slot{
		Start: time.Date(day.Year(), day.Month(), day.Day(), WorkdayStartHour, 0, 0, 0, day.Location()),
		End:   time.Date(day.Year(), day.Month(), day.Day(), WorkdayEndHour, 0, 0, 0, day.Location()),
	}
}

// freeSlots computes the complement of booked intervals within the window.
// booked must be sorted by start and non-overlapping; both hold for
// confirmed bookings because the store orders them and the admission engine
// never admits an overlap. Intervals are clipped to the window.
func freeSlots(window Slot, booked []Slot) []Slot {
	free := []Slot{}
	cursor := window.Start

	for _, b := range booked {
		if !b.End.After(window.Start) || !b.Start.Before(window.End) {
			continue
		}
		start := b.Start
		if start.Before(window.Start) {
			start = window.Start
		}
		if cursor.Before(start) {
			free = append(free, Slot{Start: cursor, End: start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if cursor.Before(window.End) {
		free = append(free, Slot{Start: cursor, End: window.End})
	}
	return free
}

// clipToWindow trims booked intervals to the working window and drops the
// ones entirely outside it, for reporting alongside the free slots.
func clipToWindow(window Slot, booked []Slot) []Slot {
	clipped := []Slot{}
	for _, b := range booked {
		if !b.End.After(window.Start) || !b.Start.Before(window.End) {
			continue
		}
		s := b
		if s.Start.Before(window.Start) {
			s.Start = window.Start
		}
		if s.End.After(window.End) {
			s.End = window.End
		}
		clipped = append(clipped, s)
	}
	return clipped
}
