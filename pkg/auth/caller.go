package auth

import "context"

type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleStaff    Role = "Staff"
	RoleCustomer Role = "Customer"
	RoleDriver   Role = "Driver"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer, RoleDriver:
		return true
	}
	return false
}

// Caller is the authenticated identity supplied by the identity provider.
// Customers own bookings whose CustomerID equals their UserID.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) IsStaff() bool {
	return c.Role == RoleAdmin || c.Role == RoleStaff
}

// Owns reports whether the caller is the customer identified by customerID.
func (c Caller) Owns(customerID string) bool {
	return c.Role == RoleCustomer && c.UserID != "" && c.UserID == customerID
}

// CanActOn reports whether the caller may act on a resource owned by customerID.
func (c Caller) CanActOn(customerID string) bool {
	return c.IsStaff() || c.Owns(customerID)
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
