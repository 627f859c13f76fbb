package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaseStore struct {
	values map[string]string
	err    error
}

func newLeaseStore() *leaseStore {
	return &leaseStore{values: map[string]string{}}
}

func (s *leaseStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, taken := s.values[key]; taken {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *leaseStore) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	if s.values[key] != value {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newLeaseStore()
	first, err := NewRedisLock(store, "sy:lock:cron", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "sy:lock:cron", time.Minute)
	require.NoError(t, err)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "sy:lock:cron", "a replica that never won must not clear the lease")

	require.NoError(t, first.Release(ctx))
	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestRedisLockReleaseLeavesForeignLease(t *testing.T) {
	ctx := context.Background()
	store := newLeaseStore()
	lock, err := NewRedisLock(store, "sy:lock:cron", time.Minute)
	require.NoError(t, err)

	won, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	// lease expired and another replica took over
	store.values["sy:lock:cron"] = "other-replica"

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "other-replica", store.values["sy:lock:cron"])
}

func TestRedisLockAcquireError(t *testing.T) {
	store := newLeaseStore()
	store.err = errors.New("connection reset")
	lock, err := NewRedisLock(store, "sy:lock:cron", time.Minute)
	require.NoError(t, err)

	won, err := lock.Acquire(context.Background())
	assert.False(t, won)
	assert.ErrorContains(t, err, "connection reset")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newLeaseStore(), "", time.Minute)
	assert.Error(t, err)
}
