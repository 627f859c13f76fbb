package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/stockyard-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	replayTTL        = 24 * time.Hour
	paymentReplayTTL = 7 * 24 * time.Hour
)

// replayRoute describes a mutating endpoint whose responses are remembered.
// Path templates use "*" for exactly one path segment.
type replayRoute struct {
	method      string
	template    string
	ttl         time.Duration
	keyRequired bool
}

var replayRoutes = []replayRoute{
	{http.MethodPost, "/api/v1/bookings/drafts/*/payment-order", paymentReplayTTL, true},
	{http.MethodPost, "/api/v1/payments/fallback", replayTTL, false},
	{http.MethodPost, "/api/admin/inquiries/*/allocate", replayTTL, false},
}

func lookupReplayRoute(method, path string) (replayRoute, bool) {
	for _, route := range replayRoutes {
		if route.method == method && pathMatches(route.template, path) {
			return route, true
		}
	}
	return replayRoute{}, false
}

func pathMatches(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if got[i] == "" || (segment != "*" && segment != got[i]) {
			return false
		}
	}
	return true
}

// storedResponse is what a replay writes back. Body is raw bytes, which
// encoding/json carries as base64.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

func (s storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Idempotency replays the first non-5xx response recorded for an
// Idempotency-Key on the routes listed in replayRoutes. Reusing a key with a
// different body is a conflict; 5xx responses are never stored so the client
// can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := lookupReplayRoute(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			fail := func(err error) { responses.WriteError(r.Context(), logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				if route.keyRequired {
					fail(pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			// Keys are per caller: anonymous requests share the empty staff id.
			key := store.IdempotencyKey(StaffIDFromContext(r.Context())+"|"+r.Method+"|"+r.URL.Path, clientKey)

			prior, found, err := loadStoredResponse(r, store, key)
			switch {
			case err != nil:
				fail(err)
				return
			case found && prior.Fingerprint != fingerprint:
				fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
				return
			case found:
				prior.writeTo(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				Fingerprint: fingerprint,
			})
			if err == nil {
				_, err = store.SetNX(r.Context(), key, string(payload), route.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(r.Context(), "store idempotent response", err)
			}
		})
	}
}

func loadStoredResponse(r *http.Request, store pkgredis.IdempotencyStore, key string) (storedResponse, bool, error) {
	raw, err := store.Get(r.Context(), key)
	switch {
	case errors.Is(err, pkgredis.Nil):
		return storedResponse{}, false, nil
	case err != nil:
		return storedResponse{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up idempotency key")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return storedResponse{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response")
	}
	return prior, true, nil
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// responseCapture tees the response so it can be stored after the handler
// returns.
type responseCapture struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *responseCapture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
