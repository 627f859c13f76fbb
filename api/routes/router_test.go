package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/api/middleware"
	"github.com/angelmondragon/stockyard-backend/internal/inquiries"
	"github.com/angelmondragon/stockyard-backend/pkg/auth"
	"github.com/angelmondragon/stockyard-backend/pkg/auth/session"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

// testStaffID owns every session stubSessions reports.
const testStaffID = "7d3f2a44-9c1e-4b6a-8f0d-2e5b6c7a8d90"

type stubSessions struct{}

func (stubSessions) Owner(context.Context, string) (string, error) {
	return testStaffID, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "stockyard", ExpirationMinutes: 15},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.StaffRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		StaffID: testStaffID,
		Role:    role,
		JTI:     session.NewAccessID(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func do(h http.Handler, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(`{}`))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	cfg := testConfig()
	h := NewRouter(cfg, nil, Dependencies{DB: stubPinger{}})

	rec := do(h, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewRouter(cfg, nil, Dependencies{DB: stubPinger{err: errors.New("down")}})
	rec = do(h, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStaffRoutesRequireToken(t *testing.T) {
	h := NewRouter(testConfig(), nil, Dependencies{Sessions: stubSessions{}})

	rec := do(h, http.MethodGet, "/api/staff/inquiries", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/admin/inquiries/"+uuid.NewString()+"/unassign", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRejectStaffRole(t *testing.T) {
	cfg := testConfig()
	h := NewRouter(cfg, nil, Dependencies{Sessions: stubSessions{}})

	rec := do(h, http.MethodDelete, "/api/admin/inquiries/"+uuid.NewString(), bearer(t, cfg, enums.StaffRoleStaff))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodGet, "/api/admin/analytics/funnel", bearer(t, cfg, enums.StaffRoleStaff))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticatedRoutesReachHandlers(t *testing.T) {
	cfg := testConfig()
	h := NewRouter(cfg, nil, Dependencies{Sessions: stubSessions{}})

	// No inquiry manager is wired, so a request that clears auth lands on the
	// handler's unavailable branch.
	rec := do(h, http.MethodGet, "/api/staff/inquiries", bearer(t, cfg, enums.StaffRoleStaff))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(h, http.MethodPost, "/api/admin/inquiries/"+uuid.NewString()+"/unassign", bearer(t, cfg, enums.StaffRoleAdmin))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublicRoutesAreMounted(t *testing.T) {
	h := NewRouter(testConfig(), nil, Dependencies{})

	cases := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/v1/bookings/drafts"},
		{http.MethodPost, "/api/v1/payments/confirm"},
		{http.MethodPost, "/api/v1/payments/fallback"},
		{http.MethodGet, "/api/v1/payments/orders/order_123"},
		{http.MethodGet, "/api/v1/warehouses/" + uuid.NewString() + "/summary"},
		{http.MethodPost, "/api/v1/inquiries"},
		{http.MethodPost, "/api/v1/auth/staff/login"},
		{http.MethodPost, "/api/v1/webhooks/razorpay"},
	}
	for _, tc := range cases {
		rec := do(h, tc.method, tc.target, "")
		assert.NotEqual(t, http.StatusNotFound, rec.Code, tc.target)
		assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code, tc.target)
	}
}

func TestStaffIdentity(t *testing.T) {
	provider := StaffIdentity()

	_, err := provider.Identity(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	staffID := uuid.NewString()
	ctx := middleware.WithStaff(context.Background(), staffID, string(enums.StaffRoleAdmin), "access")
	identity, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, inquiries.Identity{StaffID: staffID, Role: enums.StaffRoleAdmin}, identity)
}
