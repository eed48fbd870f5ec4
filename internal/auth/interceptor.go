// ABOUTME: gRPC interceptors authenticating requests with session tokens
// ABOUTME: Extracts the bearer token from metadata and populates context for handlers

package auth

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/oneblock/oneblock-gateway/internal/identity"
)

// healthServicePrefix marks methods that never require authentication.
const healthServicePrefix = "/grpc.health.v1.Health/"

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// UnaryInterceptor returns a gRPC unary interceptor that authenticates requests.
func UnaryInterceptor(sessions *SessionManager, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		claims, token, err := extractAuth(ctx, sessions, logger, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(WithClaims(ctx, claims, token), req)
	}
}

// StreamInterceptor returns a gRPC stream interceptor that authenticates requests.
func StreamInterceptor(sessions *SessionManager, logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(srv, ss)
		}

		claims, token, err := extractAuth(ss.Context(), sessions, logger, info.FullMethod)
		if err != nil {
			return err
		}

		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithClaims(ss.Context(), claims, token),
		}
		return handler(srv, wrapped)
	}
}

// wrappedServerStream wraps a grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// extractAuth reads the authorization metadata and validates the session token.
func extractAuth(ctx context.Context, sessions *SessionManager, logger *slog.Logger, method string) (*Claims, string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logAuthFailure(logger, ctx, "missing metadata", "method", method)
		return nil, "", status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		logAuthFailure(logger, ctx, "missing authorization header", "method", method)
		return nil, "", status.Error(codes.Unauthenticated, "missing authorization header")
	}

	token, errMsg := extractBearerToken(values[0])
	if errMsg != "" {
		logAuthFailure(logger, ctx, errMsg, "method", method)
		return nil, "", status.Error(codes.Unauthenticated, errMsg)
	}

	claims, err := sessions.Validate(token)
	if err != nil {
		logAuthFailure(logger, ctx, "invalid token", "method", method, "error", err)
		return nil, "", status.Error(codes.Unauthenticated, "invalid token")
	}

	if claims.Role == identity.RolePending {
		logAuthFailure(logger, ctx, "pending approval", "method", method, "address", claims.Address)
		return nil, "", status.Error(codes.PermissionDenied, "registration pending approval")
	}
	return claims, token, nil
}
