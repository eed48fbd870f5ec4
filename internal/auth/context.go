// ABOUTME: Request identity context populated by the route guard and gRPC interceptor
// ABOUTME: Provides WithClaims/FromContext for propagating verified claims to handlers

package auth

import (
	"context"
)

// Roles with elevated access.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// IsStaff returns true if the claims belong to a provisioned staff member.
func (c *Claims) IsStaff() bool {
	return c.Role == RoleAdmin || c.Role == RoleTeacher
}

// claimsContextKey is the key type for storing Claims in context.Context.
type claimsContextKey struct{}

// tokenContextKey is the key type for storing the raw bearer token.
type tokenContextKey struct{}

// WithClaims returns a new context with the verified claims and their token attached.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, claimsContextKey{}, claims)
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// FromContext retrieves the Claims from the context, returning nil if not present.
func FromContext(ctx context.Context) *Claims {
	val := ctx.Value(claimsContextKey{})
	if val == nil {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// TokenFromContext returns the bearer token that produced the context's claims.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// MustFromContext retrieves the Claims from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Claims {
	claims := FromContext(ctx)
	if claims == nil {
		panic("auth: Claims not found in context")
	}
	return claims
}
