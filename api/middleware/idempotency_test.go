package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/stockyard-backend/pkg/redis"
)

const paymentOrderPath = "/api/v1/bookings/drafts/d1/payment-order"

type replayStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newReplayStore() *replayStore {
	return &replayStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *replayStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (s *replayStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *replayStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *replayStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func post(h http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLookupReplayRoute(t *testing.T) {
	cases := []struct {
		method, path string
		ok           bool
		ttl          time.Duration
		required     bool
	}{
		{http.MethodPost, paymentOrderPath, true, paymentReplayTTL, true},
		{http.MethodPost, "/api/v1/payments/fallback/", true, replayTTL, false},
		{http.MethodPost, "/api/admin/inquiries/abc/allocate", true, replayTTL, false},
		{http.MethodPost, "/api/v1/bookings/drafts//payment-order", false, 0, false},
		{http.MethodPost, "/api/v1/bookings/drafts", false, 0, false},
		{http.MethodGet, "/api/v1/payments/fallback", false, 0, false},
	}
	for _, tc := range cases {
		route, ok := lookupReplayRoute(tc.method, tc.path)
		require.Equal(t, tc.ok, ok, tc.path)
		if ok {
			assert.Equal(t, tc.ttl, route.ttl, tc.path)
			assert.Equal(t, tc.required, route.keyRequired, tc.path)
		}
	}
}

func TestIdempotencyRequiresKeyOnPaymentOrders(t *testing.T) {
	called := false
	h := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := post(h, paymentOrderPath, "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"order_1"}`))
	}))

	first := post(h, paymentOrderPath, "abc", `{"amount":100}`)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := post(h, paymentOrderPath, "abc", `{"amount":100}`)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"order_id":"order_1"}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, paymentReplayTTL, ttl, key)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	h := Idempotency(newReplayStore(), nil)(okHandler())

	post(h, paymentOrderPath, "xyz", `{"amount":100}`)
	rec := post(h, paymentOrderPath, "xyz", `{"amount":999}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), body.Error.Code)
}

func TestIdempotencyOptionalKey(t *testing.T) {
	store := newReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	for range 2 {
		assert.Equal(t, http.StatusOK, post(h, "/api/v1/payments/fallback", "", `{}`).Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	status := http.StatusServiceUnavailable
	calls := 0
	h := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	assert.Equal(t, http.StatusServiceUnavailable, post(h, paymentOrderPath, "retry-me", `{}`).Code)
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, post(h, paymentOrderPath, "retry-me", `{}`).Code)
	assert.Equal(t, http.StatusCreated, post(h, paymentOrderPath, "retry-me", `{}`).Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	store := newReplayStore()
	h := Idempotency(store, nil)(okHandler())
	post(h, "/api/v1/bookings/drafts", "abc", `{}`)
	assert.Empty(t, store.data)
}
