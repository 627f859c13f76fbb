package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	keys map[string]time.Duration
	err  error
}

func (m *memStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "sy:idempotency:" + scope + ":" + id
}

func TestGuardSeenThenForget(t *testing.T) {
	ctx := context.Background()
	store := &memStore{keys: map[string]time.Duration{}}
	guard, err := NewGuard(store, "razorpay-webhook", 72*time.Hour)
	require.NoError(t, err)

	seen, err := guard.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, 72*time.Hour, store.keys["sy:idempotency:razorpay-webhook:evt_1"])

	seen, err = guard.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Forget(ctx, "evt_1"))
	seen, err = guard.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardScopesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := &memStore{keys: map[string]time.Duration{}}
	webhook, err := NewGuard(store, "razorpay-webhook", time.Hour)
	require.NoError(t, err)
	funnel, err := NewGuard(store, "consumer:booking-funnel", time.Hour)
	require.NoError(t, err)

	_, err = webhook.Seen(ctx, "evt_9")
	require.NoError(t, err)
	seen, err := funnel.Seen(ctx, "evt_9")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardErrors(t *testing.T) {
	ctx := context.Background()
	store := &memStore{keys: map[string]time.Duration{}}
	guard, err := NewGuard(store, "razorpay-webhook", time.Hour)
	require.NoError(t, err)

	_, err = guard.Seen(ctx, "")
	assert.ErrorIs(t, err, errEmptyID)
	assert.ErrorIs(t, guard.Forget(ctx, ""), errEmptyID)

	store.err = errors.New("redis down")
	_, err = guard.Seen(ctx, "evt_2")
	assert.ErrorContains(t, err, "redis down")

	_, err = NewGuard(nil, "x", time.Hour)
	assert.Error(t, err)
	_, err = NewGuard(store, " ", time.Hour)
	assert.Error(t, err)
	_, err = NewGuard(store, "x", -time.Second)
	assert.Error(t, err)
}
