package testutil

import (
	"context"

	"github.com/rumahku/billing/internal/types"
)

const (
	DefaultFamilyID = "fam_test"
	OtherFamilyID   = "fam_other"
)

// SetupContext returns a member context for DefaultFamilyID
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	ctx = types.SetFamilyID(ctx, DefaultFamilyID)
	ctx = types.SetRole(ctx, types.RoleMember)
	return ctx
}

// SetupAdminContext returns a context authenticated with the admin key
func SetupAdminContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxUserID, types.SystemUserID)
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	return types.SetRole(ctx, types.RoleAdmin)
}
