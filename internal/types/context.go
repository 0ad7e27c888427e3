package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxUserID    ContextKey = "ctx_user_id"
	CtxFamilyID  ContextKey = "ctx_family_id"
	CtxJWT       ContextKey = "ctx_jwt"
	CtxRole      ContextKey = "ctx_role"

	// Default values
	DefaultUserID = "00000000-0000-0000-0000-000000000000"
	SystemUserID  = "system"

	RoleAdmin  = "admin"
	RoleMember = "member"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetFamilyID(ctx context.Context) string {
	if familyID, ok := ctx.Value(CtxFamilyID).(string); ok {
		return familyID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetJWT(ctx context.Context) string {
	if jwt, ok := ctx.Value(CtxJWT).(string); ok {
		return jwt
	}
	return ""
}

func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(CtxRole).(string); ok {
		return role
	}
	return ""
}

func IsAdmin(ctx context.Context) bool {
	return GetRole(ctx) == RoleAdmin
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

func SetFamilyID(ctx context.Context, familyID string) context.Context {
	return context.WithValue(ctx, CtxFamilyID, familyID)
}

func SetRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, CtxRole, role)
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}
