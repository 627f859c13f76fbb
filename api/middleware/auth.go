package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	pkgAuth "github.com/angelmondragon/stockyard-backend/pkg/auth"
	"github.com/angelmondragon/stockyard-backend/pkg/auth/session"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

// Auth admits requests carrying a valid staff bearer token whose session is
// still live and was started by the same staff member. A nil sessions skips
// the session lookup.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithStaff(r.Context(), claims.StaffID, string(claims.Role), claims.ID)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithStaffID(ctx, claims.StaffID), string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, unauthorized("missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" || claims.StaffID == "" {
		return nil, unauthorized("invalid token subject")
	}
	if sessions == nil {
		return claims, nil
	}
	if err := checkSession(r.Context(), sessions, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func checkSession(ctx context.Context, sessions session.AccessSessionChecker, claims *pkgAuth.AccessTokenClaims) error {
	owner, err := sessions.Owner(ctx, claims.ID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return unauthorized("session unavailable")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case owner != claims.StaffID:
		return unauthorized("session unavailable")
	}
	return nil
}

// bearerToken accepts "Bearer <t>" in any case, or a bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}

func unauthorized(msg string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
}
