// Package session keeps a Redis marker per issued staff token so logout can
// invalidate a JWT before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/redis"
)

// ErrNoSession means the marker expired or was revoked.
var ErrNoSession = errors.New("session not found")

// Store is the Redis surface the manager needs.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	Owner(ctx context.Context, accessID string) (string, error)
}

// Manager stores staffID under the token's jti for the token's lifetime.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

func (m *Manager) Start(ctx context.Context, accessID, staffID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(staffID) == "" {
		return errors.New("staff id is required")
	}
	return m.store.Set(ctx, key, staffID, m.ttl)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// Owner returns the staff id the session was started for, or ErrNoSession.
func (m *Manager) Owner(ctx context.Context, accessID string) (string, error) {
	key, err := m.key(accessID)
	if err != nil {
		return "", err
	}
	staffID, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrNoSession
	case err != nil:
		return "", fmt.Errorf("read session: %w", err)
	}
	return staffID, nil
}

func (m *Manager) key(accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errors.New("access id is required")
	}
	return m.store.AccessSessionKey(accessID), nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}
