package orders

import (
	"sort"
	"time"
)

// Pure interval math. The store snapshot is passed in; serialization of
// check-then-insert is the service's job, not this file's.

// AvailabilityResult is the answer to "can I book sku over [start,end)".
type AvailabilityResult struct {
	Available         bool
	ConflictingOrders []string
	Suggested         *TimeRange
}

// CheckAvailability tests the candidate window against the occupied
// (buffer-padded) ranges of the given orders. Canceled rows must already
// be filtered out by the caller.
func CheckAvailability(existing []Order, candidate TimeRange) AvailabilityResult {
	var conflicts []string
	for _, o := range existing {
		if o.Occupied().Overlaps(candidate) {
			conflicts = append(conflicts, o.OrderID)
		}
	}
	if len(conflicts) == 0 {
		return AvailabilityResult{Available: true}
	}
	sug := SuggestSlot(existing, candidate.Start, candidate.Duration())
	return AvailabilityResult{ConflictingOrders: conflicts, Suggested: &sug}
}

// SuggestSlot finds the earliest gap of at least duration, scanning the
// occupied ranges in chronological order starting from earliest. If no
// gap between bookings fits, the slot right after the last booking is
// returned.
func SuggestSlot(existing []Order, earliest time.Time, duration time.Duration) TimeRange {
	merged := mergeOccupied(existing, earliest)
	cursor := earliest
	for _, block := range merged {
		if cursor.Add(duration).Before(block.Start) || cursor.Add(duration).Equal(block.Start) {
			break
		}
		if block.End.After(cursor) {
			cursor = block.End
		}
	}
	return TimeRange{Start: cursor, End: cursor.Add(duration)}
}

// FreeSlots lists every gap of at least duration inside [windowStart,
// windowEnd). Used by the suggest-slot intent to offer choices around a
// requested time rather than just the first fit.
func FreeSlots(existing []Order, window TimeRange, duration time.Duration) []TimeRange {
	merged := mergeOccupied(existing, window.Start)
	var free []TimeRange
	cursor := window.Start
	for _, block := range merged {
		if block.End.Before(cursor) || block.End.Equal(cursor) {
			continue
		}
		if block.Start.After(window.End) {
			break
		}
		if cursor.Before(block.Start) {
			free = append(free, TimeRange{Start: cursor, End: minTime(block.Start, window.End)})
		}
		cursor = maxTime(cursor, block.End)
	}
	if cursor.Before(window.End) {
		free = append(free, TimeRange{Start: cursor, End: window.End})
	}
	out := free[:0]
	for _, slot := range free {
		if slot.Duration() >= duration {
			out = append(out, slot)
		}
	}
	return out
}

// mergeOccupied sorts the padded ranges and merges overlapping or
// adjacent ones, dropping anything that ends before the horizon.
func mergeOccupied(existing []Order, horizon time.Time) []TimeRange {
	ranges := make([]TimeRange, 0, len(existing))
	for _, o := range existing {
		occ := o.Occupied()
		if occ.End.After(horizon) {
			ranges = append(ranges, occ)
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })
	if len(ranges) == 0 {
		return nil
	}
	merged := ranges[:1]
	for _, cur := range ranges[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
