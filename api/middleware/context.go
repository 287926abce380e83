package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

type staffKey struct{}

// Staff is the till operator a request was authenticated as.
type Staff struct {
	ID   uuid.UUID
	Role enums.StaffRole
}

// WithStaff binds the authenticated staff member to ctx.
func WithStaff(ctx context.Context, s Staff) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, staffKey{}, s)
}

// StaffFromContext reports the staff member bound by Auth. Channel pushes
// from the storefront carry none.
func StaffFromContext(ctx context.Context) (Staff, bool) {
	if ctx == nil {
		return Staff{}, false
	}
	s, ok := ctx.Value(staffKey{}).(Staff)
	return s, ok
}

func StaffIDFromContext(ctx context.Context) string {
	if s, ok := StaffFromContext(ctx); ok && s.ID != uuid.Nil {
		return s.ID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.StaffRole {
	s, _ := StaffFromContext(ctx)
	return s.Role
}
