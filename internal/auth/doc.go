// Package auth provides wallet login, session tokens and request guarding.
//
// # Login
//
// Authenticator.Login runs three steps in strict order:
//
//  1. wallet.Verify checks the personal_sign signature over the deployment's
//     fixed challenge ("login Oneblock" by default).
//  2. The identity resolver maps the address to staff, student, pending,
//     rejected or unknown.
//  3. SessionManager.Issue mints a token for staff, student and pending.
//
// A malformed address and a bad signature both yield ErrSignatureInvalid so
// callers cannot probe which addresses exist.
//
// # Session Tokens
//
// Tokens are HS256 JWTs signed with the configured jwt_secret (at least 32
// bytes). Claims carry address, role, approvalStatus and subjectId plus the
// registered sub, iss, iat, exp and jti. Claims are a snapshot taken at
// login; approval changes take effect on the next login. There is no sliding
// expiry.
//
// # Route Guard
//
// RouteGuard.Middleware protects configured path prefixes:
//
//	guard, _ := auth.NewRouteGuard(auth.GuardConfig{
//		Rules: []auth.RouteRule{
//			{Prefix: "/dashboard", Kind: auth.RouteKindPage},
//			{Prefix: "/api/me", Kind: auth.RouteKindAPI},
//		},
//		Sessions: sessions,
//	})
//
// The gateway builds its rules from the guard.routes config section, which
// defaults to config.DefaultRoutes.
//	r.Use(guard.Middleware)
//
// The token is read from "Authorization: Bearer" first, then the session
// cookie. Missing, invalid and expired tokens, and tokens whose role is
// "pending", are rejected: page routes redirect to "/", API routes answer
// 401 {"error":"unauthorized"}. Accepted requests carry the claims in their
// context (FromContext) and a normalized Authorization header.
//
// # gRPC Interceptors
//
// UnaryInterceptor and StreamInterceptor apply the same token check to gRPC
// calls using "authorization" metadata. The grpc.health.v1 service is exempt.
package auth
