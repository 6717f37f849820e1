package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func booking(id, sku string, start, end string) Order {
	return Order{OrderID: id, SKU: sku, StartAt: at(start), EndAt: at(end), Status: StatusCreated}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := TimeRange{Start: at("2026-01-29 08:00"), End: at("2026-01-30 20:00")}

	assert.True(t, a.Overlaps(TimeRange{Start: at("2026-01-30 00:00"), End: at("2026-01-31 00:00")}))
	assert.True(t, a.Overlaps(TimeRange{Start: at("2026-01-28 00:00"), End: at("2026-01-29 08:01")}))
	// back-to-back is not an overlap
	assert.False(t, a.Overlaps(TimeRange{Start: at("2026-01-30 20:00"), End: at("2026-01-31 08:00")}))
	assert.False(t, a.Overlaps(TimeRange{Start: at("2026-01-28 00:00"), End: at("2026-01-29 08:00")}))
}

func TestCheckAvailability(t *testing.T) {
	existing := []Order{
		booking("ord-1", "BLACK_L", "2026-01-29 08:00", "2026-01-30 20:00"),
	}

	res := CheckAvailability(existing, TimeRange{Start: at("2026-01-29 12:00"), End: at("2026-01-29 18:00")})
	assert.False(t, res.Available)
	assert.Equal(t, []string{"ord-1"}, res.ConflictingOrders)
	require.NotNil(t, res.Suggested)
	// first fit right after the existing booking, same duration
	assert.Equal(t, at("2026-01-30 20:00"), res.Suggested.Start)
	assert.Equal(t, at("2026-01-31 02:00"), res.Suggested.End)

	// the boundary slot starting exactly at the previous end is free
	res = CheckAvailability(existing, TimeRange{Start: at("2026-01-30 20:00"), End: at("2026-01-31 08:00")})
	assert.True(t, res.Available)
}

func TestCheckAvailabilityBuffer(t *testing.T) {
	padded := booking("ord-1", "BLACK_L", "2026-01-29 08:00", "2026-01-30 20:00")
	padded.BufferHours = 3

	// back-to-back now collides with the padding
	res := CheckAvailability([]Order{padded}, TimeRange{Start: at("2026-01-30 20:00"), End: at("2026-01-31 08:00")})
	assert.False(t, res.Available)

	res = CheckAvailability([]Order{padded}, TimeRange{Start: at("2026-01-30 23:00"), End: at("2026-01-31 08:00")})
	assert.True(t, res.Available)
}

func TestSuggestSlotFirstGap(t *testing.T) {
	existing := []Order{
		booking("ord-2", "BLACK_L", "2026-01-31 00:00", "2026-01-31 12:00"),
		booking("ord-1", "BLACK_L", "2026-01-29 08:00", "2026-01-30 20:00"),
	}

	// 2h request fits the gap between the two bookings
	slot := SuggestSlot(existing, at("2026-01-29 09:00"), 2*time.Hour)
	assert.Equal(t, at("2026-01-30 20:00"), slot.Start)

	// 6h request does not; falls through to after the last booking
	slot = SuggestSlot(existing, at("2026-01-29 09:00"), 6*time.Hour)
	assert.Equal(t, at("2026-01-31 12:00"), slot.Start)
}

func TestFreeSlots(t *testing.T) {
	existing := []Order{
		booking("ord-1", "BLACK_L", "2026-01-29 08:00", "2026-01-30 20:00"),
		booking("ord-2", "BLACK_L", "2026-01-31 00:00", "2026-01-31 12:00"),
	}
	window := TimeRange{Start: at("2026-01-28 00:00"), End: at("2026-02-02 00:00")}

	slots := FreeSlots(existing, window, 4*time.Hour)
	require.Len(t, slots, 3)
	assert.Equal(t, TimeRange{Start: at("2026-01-28 00:00"), End: at("2026-01-29 08:00")}, slots[0])
	assert.Equal(t, TimeRange{Start: at("2026-01-30 20:00"), End: at("2026-01-31 00:00")}, slots[1])
	assert.Equal(t, TimeRange{Start: at("2026-01-31 12:00"), End: at("2026-02-02 00:00")}, slots[2])

	// a longer duration filters out the middle gap
	slots = FreeSlots(existing, window, 5*time.Hour)
	require.Len(t, slots, 2)
	assert.Equal(t, at("2026-01-28 00:00"), slots[0].Start)
	assert.Equal(t, at("2026-01-31 12:00"), slots[1].Start)
}

func TestFreeSlotsMergesAdjacent(t *testing.T) {
	existing := []Order{
		booking("ord-1", "BLACK_L", "2026-01-29 08:00", "2026-01-29 12:00"),
		booking("ord-2", "BLACK_L", "2026-01-29 12:00", "2026-01-29 16:00"),
		booking("ord-3", "BLACK_L", "2026-01-29 10:00", "2026-01-29 14:00"),
	}
	window := TimeRange{Start: at("2026-01-29 00:00"), End: at("2026-01-30 00:00")}

	slots := FreeSlots(existing, window, time.Hour)
	require.Len(t, slots, 2)
	assert.Equal(t, TimeRange{Start: at("2026-01-29 00:00"), End: at("2026-01-29 08:00")}, slots[0])
	assert.Equal(t, TimeRange{Start: at("2026-01-29 16:00"), End: at("2026-01-30 00:00")}, slots[1])
}

func TestFreeSlotsEmptyCalendar(t *testing.T) {
	window := TimeRange{Start: at("2026-01-29 00:00"), End: at("2026-01-30 00:00")}
	slots := FreeSlots(nil, window, time.Hour)
	require.Len(t, slots, 1)
	assert.Equal(t, window, slots[0])
}
