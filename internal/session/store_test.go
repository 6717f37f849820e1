package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
	assert.Nil(t, s.Pending)

	s.Pending = &PendingCall{
		Intent: "create",
		Fields: map[string]string{"sku": "BLACK_L"},
	}
	s.Remember("user", "rent a black L", time.Now())
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got.Pending)
	assert.Equal(t, "create", got.Pending.Intent)
	assert.Equal(t, "BLACK_L", got.Pending.Fields["sku"])
	assert.Len(t, got.History, 1)
}

func TestHistoryIsBounded(t *testing.T) {
	s := New("s-2")
	for i := 0; i < historyLimit+15; i++ {
		s.Remember("user", fmt.Sprintf("turn %d", i), time.Now())
	}
	assert.Len(t, s.History, historyLimit)
	assert.Equal(t, "turn 15", s.History[0].Text)
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, _ := store.Get(ctx, "s-3")
	require.NoError(t, store.Put(ctx, s))

	a, _ := store.Get(ctx, "s-3")
	a.Pending = &PendingCall{Intent: "cancel"}

	b, _ := store.Get(ctx, "s-3")
	assert.Nil(t, b.Pending, "mutating one read must not leak into the store")
}
