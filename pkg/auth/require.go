package auth

import (
	"context"
	apperrors "movez/pkg/errors"
	"slices"
)

// Require returns the caller on ctx when it holds one of roles. An empty roles list
// accepts any authenticated caller.
func Require(ctx context.Context, roles ...Role) (Caller, error) {
	caller, ok := FromContext(ctx)
	if !ok {
		return Caller{}, apperrors.Unauthorized("authentication required")
	}
	if len(roles) == 0 || slices.Contains(roles, caller.Role) {
		return caller, nil
	}
	if caller.IsStaff() && (slices.Contains(roles, RoleStaff) || slices.Contains(roles, RoleAdmin)) {
		return caller, nil
	}
	return Caller{}, apperrors.Forbidden("insufficient role")
}

// RequireStaff is Require(ctx, RoleStaff, RoleAdmin).
func RequireStaff(ctx context.Context) (Caller, error) {
	return Require(ctx, RoleStaff, RoleAdmin)
}
