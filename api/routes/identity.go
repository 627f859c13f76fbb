package routes

import (
	"context"

	"github.com/angelmondragon/stockyard-backend/api/middleware"
	"github.com/angelmondragon/stockyard-backend/internal/inquiries"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

// StaffIdentity resolves the authenticated staff member placed on the
// context by middleware.Auth.
func StaffIdentity() inquiries.IdentityProvider {
	return inquiries.IdentityFunc(func(ctx context.Context) (inquiries.Identity, error) {
		staffID := middleware.StaffIDFromContext(ctx)
		if staffID == "" {
			return inquiries.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff identity missing")
		}
		role, err := enums.ParseStaffRole(middleware.RoleFromContext(ctx))
		if err != nil {
			return inquiries.Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "staff role missing")
		}
		return inquiries.Identity{StaffID: staffID, Role: role}, nil
	})
}
