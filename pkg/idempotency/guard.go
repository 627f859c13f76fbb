// Package idempotency lets at-least-once consumers skip deliveries they have
// already handled. Marks live in Redis and expire after a TTL; the database
// remains the final word on duplicates.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store is the slice of the Redis client a Guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

var errEmptyID = errors.New("idempotency: id is required")

type Guard struct {
	store Store
	scope string
	ttl   time.Duration
}

// NewGuard scopes marks so two consumers of the same event never share one.
// A zero ttl keeps marks forever.
func NewGuard(store Store, scope string, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case strings.TrimSpace(scope) == "":
		return nil, errors.New("idempotency scope is required")
	case ttl < 0:
		return nil, errors.New("idempotency ttl must not be negative")
	}
	return &Guard{store: store, scope: scope, ttl: ttl}, nil
}

// Seen marks id and reports whether an earlier delivery had marked it first.
func (g *Guard) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errEmptyID
	}
	fresh, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, id), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s/%s: %w", g.scope, id, err)
	}
	return !fresh, nil
}

// Forget clears the mark so the next delivery of id is handled again.
func (g *Guard) Forget(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, id))
}
