package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxIdentityID ctxKey = iota
	ctxRole
)

func WithIdentity(ctx context.Context, identityID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxIdentityID, identityID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func IdentityID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxIdentityID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("identity_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
