package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/pkg/redis"
)

type memStore struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func TestStartOwnerRevoke(t *testing.T) {
	store := newMemStore()
	mgr, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	accessID := NewAccessID()

	require.NoError(t, mgr.Start(ctx, accessID, "staff-1"))
	assert.Equal(t, time.Hour, store.ttls["sess:"+accessID])

	owner, err := mgr.Owner(ctx, accessID)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", owner)

	require.NoError(t, mgr.Revoke(ctx, accessID))
	_, err = mgr.Owner(ctx, accessID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestBlankIDsRejected(t *testing.T) {
	mgr, err := NewManager(newMemStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, mgr.Start(ctx, " ", "staff-1"))
	assert.Error(t, mgr.Start(ctx, "abc", ""))
	assert.Error(t, mgr.Revoke(ctx, ""))
	_, err = mgr.Owner(ctx, "")
	assert.Error(t, err)
}

func TestOwnerStoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("redis down")
	mgr, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = mgr.Owner(context.Background(), "abc")
	assert.ErrorContains(t, err, "redis down")
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemStore(), 0)
	assert.Error(t, err)
}
