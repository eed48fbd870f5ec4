// Package gateway wires the oneblock-gateway server components together.
//
// # Overview
//
// The Gateway owns the persistence layer and the wallet login pipeline, and
// serves them over HTTP (chi) and, optionally, gRPC:
//
//	store ─┬─ identity.Resolver ─ auth.Authenticator ─ POST /api/auth/signin
//	       └─ enroll.Service ─────────────────────────── POST /api/register
//	auth.SessionManager ─┬─ auth.RouteGuard (HTTP middleware)
//	                     └─ auth.UnaryInterceptor / StreamInterceptor (gRPC)
//
// # HTTP API
//
//	GET  /health               liveness
//	GET  /health/ready         store ping, 200 or 503
//	GET  /api/auth/challenge   {"message": "<challenge>"}
//	POST /api/auth/signin      {"address","signature"} -> {"status", "token"?}
//	GET  /api/auth/session     claims of the presented token
//	POST /api/auth/signout     clears the session cookie
//	POST /api/register         registration form -> {"message","studentId","approvalStatus"}
//	GET  /api/me               guarded; echoes the forwarded claims
//	GET  /dashboard/*          guarded page
//
// The route guard runs ahead of routing, so every configured prefix is
// protected whether or not a handler is mounted under it.
//
// # gRPC
//
// The gRPC server carries the standard health service. Every other method
// requires "authorization: Bearer <token>" metadata with a non-pending
// session; services register through GRPCServer.
//
// # Listeners
//
// Without tailscale the HTTP server listens on server.http_addr and gRPC on
// server.grpc_addr (disabled when empty). With tailscale enabled the gateway
// joins the tailnet through tsnet and listens on :80 and :50051 there.
package gateway
