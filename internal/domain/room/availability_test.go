package room

import (
	"math/rand"
	"sort"
	"testing"
	"time"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 6, 2, 0, 0, 0, 0, time.Local)
}

func at(d time.Time, hour, min int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, d.Location())
}

func TestFreeSlotsEmptyDayIsOneSlot(t *testing.T) {
	w := workingWindow(day(t))
	free := freeSlots(w, nil)

	if len(free) != 1 {
		t.Fatalf("expected one free slot, got %d", len(free))
	}
	if !free[0].Start.Equal(w.Start) || !free[0].End.Equal(w.End) {
		t.Fatalf("free slot must cover the whole window, got %+v", free[0])
	}
}

func TestFreeSlotsMiddayBooking(t *testing.T) {
	d := day(t)
	w := workingWindow(d)
	booked := []Slot{{Start: at(d, 10, 0), End: at(d, 14, 0)}}

	free := freeSlots(w, booked)

	want := []Slot{
		{Start: at(d, 8, 0), End: at(d, 10, 0)},
		{Start: at(d, 14, 0), End: at(d, 18, 0)},
	}
	if len(free) != len(want) {
		t.Fatalf("expected %d free slots, got %d: %+v", len(want), len(free), free)
	}
	for i := range want {
		if !free[i].Start.Equal(want[i].Start) || !free[i].End.Equal(want[i].End) {
			t.Errorf("slot %d: expected %+v, got %+v", i, want[i], free[i])
		}
	}
}

func TestFreeSlotsBookingAtWindowEdges(t *testing.T) {
	d := day(t)
	w := workingWindow(d)
	booked := []Slot{
		{Start: at(d, 8, 0), End: at(d, 9, 0)},
		{Start: at(d, 17, 0), End: at(d, 18, 0)},
	}

	free := freeSlots(w, booked)
	if len(free) != 1 {
		t.Fatalf("expected single middle slot, got %+v", free)
	}
	if !free[0].Start.Equal(at(d, 9, 0)) || !free[0].End.Equal(at(d, 17, 0)) {
		t.Fatalf("unexpected middle slot: %+v", free[0])
	}
}

func TestFreeSlotsFullyBookedDay(t *testing.T) {
	d := day(t)
	w := workingWindow(d)
	booked := []Slot{{Start: at(d, 8, 0), End: at(d, 18, 0)}}

	if free := freeSlots(w, booked); len(free) != 0 {
		t.Fatalf("fully booked day must have no free slots, got %+v", free)
	}
}

func TestFreeSlotsIgnoresIntervalsOutsideWindow(t *testing.T) {
	d := day(t)
	w := workingWindow(d)
	booked := []Slot{
		{Start: at(d, 6, 0), End: at(d, 7, 0)},
		{Start: at(d, 19, 0), End: at(d, 20, 0)},
	}

	free := freeSlots(w, booked)
	if len(free) != 1 || !free[0].Start.Equal(w.Start) || !free[0].End.Equal(w.End) {
		t.Fatalf("out-of-window bookings must not split the window, got %+v", free)
	}
}

func TestFreeSlotsClipsIntervalCrossingWindowStart(t *testing.T) {
	d := day(t)
	w := workingWindow(d)
	booked := []Slot{{Start: at(d, 7, 0), End: at(d, 9, 30)}}

	free := freeSlots(w, booked)
	if len(free) != 1 || !free[0].Start.Equal(at(d, 9, 30)) || !free[0].End.Equal(w.End) {
		t.Fatalf("expected free slot from 09:30, got %+v", free)
	}
}

// Booked and free slots, both clipped to the window, must tile the window
// exactly: no gaps, no overlaps, for any non-overlapping booked set.
func TestFreeSlotsRoundTripProperty(t *testing.T) {
	d := day(t)
	w := workingWindow(d)
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		booked := randomNonOverlapping(rng, d)
		sort.Slice(booked, func(i, j int) bool { return booked[i].Start.Before(booked[j].Start) })

		tiles := append([]Slot{}, clipToWindow(w, booked)...)
		tiles = append(tiles, freeSlots(w, booked)...)
		sort.Slice(tiles, func(i, j int) bool { return tiles[i].Start.Before(tiles[j].Start) })

		if len(tiles) == 0 {
			t.Fatalf("iter %d: window cannot be empty", iter)
		}
		if !tiles[0].Start.Equal(w.Start) {
			t.Fatalf("iter %d: first tile must start at window start, got %+v", iter, tiles[0])
		}
		for i := 1; i < len(tiles); i++ {
			if !tiles[i].Start.Equal(tiles[i-1].End) {
				t.Fatalf("iter %d: gap or overlap between %+v and %+v (booked=%+v)",
					iter, tiles[i-1], tiles[i], booked)
			}
		}
		if !tiles[len(tiles)-1].End.Equal(w.End) {
			t.Fatalf("iter %d: last tile must end at window end, got %+v", iter, tiles[len(tiles)-1])
		}
	}
}

// randomNonOverlapping builds a random set of disjoint intervals across the
// day in 15 minute steps.
func randomNonOverlapping(rng *rand.Rand, d time.Time) []Slot {
	var slots []Slot
	// Walk 06:00-20:00 so some intervals fall outside the window.
	cursor := 6 * 60
	for cursor < 20*60 {
		gap := rng.Intn(8) * 15
		length := (1 + rng.Intn(8)) * 15
		start := cursor + gap
		end := start + length
		if end > 20*60 {
			break
		}
		slots = append(slots, Slot{
			Start: at(d, start/60, start%60),
			End:   at(d, end/60, end%60),
		})
		cursor = end
	}
	return slots
}
