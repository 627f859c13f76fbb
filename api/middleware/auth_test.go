package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/pkg/auth"
	"github.com/angelmondragon/stockyard-backend/pkg/auth/session"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

var authCfg = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAdmitsLiveSession(t *testing.T) {
	staffID := uuid.NewString()
	token, accessID := mintTestToken(t, staffID, enums.StaffRoleAdmin)
	sessions := sessionTable{accessID: staffID}

	var gotStaff, gotRole, gotAccess string
	handler := Auth(authCfg, sessions, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStaff = StaffIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotAccess = AccessIDFromContext(r.Context())
	}))

	for _, header := range []string{"Bearer " + token, "bearer  " + token, token} {
		rec := call(handler, header)
		require.Equal(t, http.StatusOK, rec.Code, header)
	}
	assert.Equal(t, staffID, gotStaff)
	assert.Equal(t, string(enums.StaffRoleAdmin), gotRole)
	assert.Equal(t, accessID, gotAccess)
}

func TestAuthRejections(t *testing.T) {
	staffID := uuid.NewString()
	token, accessID := mintTestToken(t, staffID, enums.StaffRoleStaff)

	cases := []struct {
		name     string
		header   string
		sessions session.AccessSessionChecker
		want     int
	}{
		{"no header", "", sessionTable{accessID: staffID}, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", sessionTable{accessID: staffID}, http.StatusUnauthorized},
		{"garbage token", "Bearer invalid", sessionTable{accessID: staffID}, http.StatusUnauthorized},
		{"revoked", "Bearer " + token, sessionTable{}, http.StatusUnauthorized},
		{"foreign session", "Bearer " + token, sessionTable{accessID: uuid.NewString()}, http.StatusUnauthorized},
		{"store down", "Bearer " + token, brokenSessions{}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(Auth(authCfg, tc.sessions, nil)(okHandler()), tc.header)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.StaffRoleAdmin)(okHandler())

	for role, want := range map[string]int{
		string(enums.StaffRoleAdmin): http.StatusOK,
		string(enums.StaffRoleStaff): http.StatusForbidden,
		"":                           http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithStaff(req.Context(), uuid.NewString(), role, "access"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func call(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func mintTestToken(t *testing.T, staffID string, role enums.StaffRole) (string, string) {
	t.Helper()
	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(authCfg, time.Now(), auth.AccessTokenPayload{StaffID: staffID, Role: role, JTI: accessID})
	require.NoError(t, err)
	return token, accessID
}

// sessionTable maps access ids to the staff member that owns them.
type sessionTable map[string]string

func (s sessionTable) Owner(_ context.Context, accessID string) (string, error) {
	owner, ok := s[accessID]
	if !ok {
		return "", session.ErrNoSession
	}
	return owner, nil
}

type brokenSessions struct{}

func (brokenSessions) Owner(context.Context, string) (string, error) {
	return "", errors.New("redis down")
}
