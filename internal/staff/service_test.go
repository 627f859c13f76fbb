package staff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/stockyard-backend/pkg/auth"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/security"
)

type fakeSessions struct {
	started map[string]string
	revoked []string
}

func (f *fakeSessions) Start(ctx context.Context, accessID, staffID string) error {
	f.started[accessID] = staffID
	return nil
}

func (f *fakeSessions) Revoke(ctx context.Context, accessID string) error {
	f.revoked = append(f.revoked, accessID)
	delete(f.started, accessID)
	return nil
}

var (
	testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "stockyard-test", ExpirationMinutes: 30}
	// cheap argon params keep the suite fast
	testPassword = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	fixedNow     = time.Now().UTC().Truncate(time.Second)
)

func newTestService(t *testing.T) (Service, *Repository, *fakeSessions) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	sessions := &fakeSessions{started: map[string]string{}}
	svc, err := NewService(ServiceParams{
		Repo:           repo,
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: testPassword,
		Now:            func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, repo, sessions
}

func TestCreateAndLogin(t *testing.T) {
	svc, repo, sessions := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{
		Email:       "  Ops@Stockyard.test ",
		DisplayName: "Ops Lead",
		Role:        enums.StaffRoleAdmin,
		Password:    "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "ops@stockyard.test", created.Email)

	resp, err := svc.Login(ctx, LoginRequest{Email: "OPS@stockyard.test", Password: "correct-horse-battery"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(30*time.Minute), resp.ExpiresAt)
	assert.Equal(t, created.ID, resp.Staff.ID)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), claims.StaffID)
	assert.Equal(t, enums.StaffRoleAdmin, claims.Role)
	assert.Equal(t, created.ID.String(), sessions.started[claims.ID])

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.WithinDuration(t, fixedNow, *stored.LastLoginAt, time.Second)

	exists, err := repo.Exists(ctx, created.ID.String())
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateParams{Email: "a@stockyard.test", DisplayName: "A", Role: enums.StaffRoleStaff, Password: "long-enough-secret"})
	require.NoError(t, err)

	cases := []LoginRequest{
		{Email: "a@stockyard.test", Password: "wrong-password"},
		{Email: "missing@stockyard.test", Password: "long-enough-secret"},
		{Email: "", Password: ""},
	}
	for _, req := range cases {
		_, err := svc.Login(ctx, req)
		require.Error(t, err)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "email=%q", req.Email)
	}
	assert.Empty(t, sessions.started)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{Email: "nope", Role: "owner", Password: "short"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	params := CreateParams{Email: "dup@stockyard.test", DisplayName: "Dup", Role: enums.StaffRoleStaff, Password: "long-enough-secret"}
	_, err = svc.Create(ctx, params)
	require.NoError(t, err)
	_, err = svc.Create(ctx, params)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestLogout(t *testing.T) {
	svc, _, sessions := newTestService(t)
	sessions.started["jti-1"] = "staff"

	require.NoError(t, svc.Logout(context.Background(), "jti-1"))
	assert.Equal(t, []string{"jti-1"}, sessions.revoked)

	err := svc.Logout(context.Background(), " ")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestRoleAllowed(t *testing.T) {
	assert.True(t, RoleAllowed(enums.StaffRoleAdmin, enums.StaffRoleAdmin, enums.StaffRoleStaff))
	assert.False(t, RoleAllowed(enums.StaffRoleStaff, enums.StaffRoleAdmin))
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateParams{Email: "b@stockyard.test", DisplayName: "B", Role: enums.StaffRoleStaff, Password: "long-enough-secret"})
	require.NoError(t, err)

	stronger := testPassword
	stronger.ArgonTime = 2
	upgraded, err := NewService(ServiceParams{
		Repo:           repo,
		SessionManager: &fakeSessions{started: map[string]string{}},
		JWTConfig:      testJWT,
		PasswordConfig: stronger,
		Now:            func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	_, err = upgraded.Login(ctx, LoginRequest{Email: "b@stockyard.test", Password: "long-enough-secret"})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.PasswordHash, ",t=2,")
	assert.False(t, security.NeedsRehash(stored.PasswordHash, security.ParamsFromConfig(stronger)))

	_, err = svc.Login(ctx, LoginRequest{Email: "b@stockyard.test", Password: "long-enough-secret"})
	require.NoError(t, err, "old profile still verifies the upgraded hash")
}
