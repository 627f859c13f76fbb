package inquiries

import (
	"context"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// Identity is the authenticated staff member performing an operation.
type Identity struct {
	StaffID string
	Role    enums.StaffRole
}

func (i Identity) IsAdmin() bool {
	return i.Role == enums.StaffRoleAdmin
}

// IdentityProvider resolves the caller from the request context.
type IdentityProvider interface {
	Identity(ctx context.Context) (Identity, error)
}

// IdentityFunc adapts a plain function to IdentityProvider.
type IdentityFunc func(ctx context.Context) (Identity, error)

func (f IdentityFunc) Identity(ctx context.Context) (Identity, error) {
	return f(ctx)
}
