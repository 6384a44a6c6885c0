package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ClaimOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	won, err := store.Claim(ctx, "order-created:txn-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	// Second claim of the same key loses
	won, err = store.Claim(ctx, "order-created:txn-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	// A different key is independent
	won, err = store.Claim(ctx, "order-created:txn-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryStore_Seen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seen, err := store.Seen(ctx, "webhook:pay-1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.Claim(ctx, "webhook:pay-1", time.Minute)
	require.NoError(t, err)

	seen, err = store.Seen(ctx, "webhook:pay-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Claim(ctx, "webhook:pay-2", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	seen, err := store.Seen(ctx, "webhook:pay-2")
	require.NoError(t, err)
	assert.False(t, seen)

	// An expired marker can be claimed again
	won, err := store.Claim(ctx, "webhook:pay-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}
