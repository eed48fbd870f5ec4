// ABOUTME: gRPC server construction with session authentication and the standard health service
// ABOUTME: Downstream services register on the returned server and read claims via auth.FromContext

package gateway

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/oneblock/oneblock-gateway/internal/auth"
)

// createGRPCServer builds a gRPC server whose non-health methods require a
// valid, non-pending session token in the authorization metadata.
func createGRPCServer(sessions *auth.SessionManager, logger *slog.Logger) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(auth.UnaryInterceptor(sessions, logger)),
		grpc.ChainStreamInterceptor(auth.StreamInterceptor(sessions, logger)),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	return server, hs
}
