package utils

import (
	"context"

	"github.com/mmdatafocus/pos_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyStaffId       = appctx.ContextKeyStaffId
	ContextKeyStaffName     = appctx.ContextKeyStaffName
	ContextKeyRole          = appctx.ContextKeyRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetStaffIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyStaffId)
}

func GetStaffNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyStaffName)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetStaffInContext(ctx context.Context, claim *StaffClaim) context.Context {
	ctx = appctx.Set(ctx, ContextKeyStaffId, claim.StaffID)
	ctx = appctx.Set(ctx, ContextKeyStaffName, claim.StaffName)
	return appctx.Set(ctx, ContextKeyRole, claim.Role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
