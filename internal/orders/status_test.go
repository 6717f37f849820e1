package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from   Status
		event  Event
		want   Status
		wantOK bool
	}{
		{StatusCreated, EventMarkPaid, StatusPaid, true},
		{StatusCreated, EventCancel, StatusCanceled, true},
		{StatusPaid, EventShip, StatusShipped, true},
		{StatusPaid, EventCancel, StatusCanceled, true},
		{StatusShipped, EventComplete, StatusSuccessful, true},

		// shipping before payment, completing before shipping
		{StatusCreated, EventShip, "", false},
		{StatusCreated, EventComplete, "", false},
		{StatusPaid, EventMarkPaid, "", false},
		{StatusPaid, EventComplete, "", false},
		// once shipped, no cancellation
		{StatusShipped, EventCancel, "", false},
		{StatusShipped, EventMarkPaid, "", false},
		// terminal states accept nothing
		{StatusSuccessful, EventCancel, "", false},
		{StatusSuccessful, EventComplete, "", false},
		{StatusCanceled, EventMarkPaid, "", false},
		{StatusCanceled, EventCancel, "", false},
	}
	for _, tc := range tests {
		got, ok := NextStatus(tc.from, tc.event)
		assert.Equal(t, tc.wantOK, ok, "%s + %s", tc.from, tc.event)
		if tc.wantOK {
			assert.Equal(t, tc.want, got, "%s + %s", tc.from, tc.event)
		}
	}
}

func TestStatusClosure(t *testing.T) {
	// every reachable target is itself a known state
	for from, events := range validNext {
		assert.True(t, from.Valid())
		for ev, to := range events {
			assert.Truef(t, to.Valid(), "%s --%s--> %s leaves the state set", from, ev, to)
		}
	}
}

func TestStatusFlags(t *testing.T) {
	assert.True(t, StatusCreated.Occupying())
	assert.True(t, StatusPaid.Occupying())
	assert.True(t, StatusShipped.Occupying())
	assert.True(t, StatusSuccessful.Occupying())
	assert.False(t, StatusCanceled.Occupying())

	assert.True(t, StatusSuccessful.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusShipped.Terminal())
}
