package api

import (
	"context"
	"fmt"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// HealthServiceName is the gRPC health service name reported alongside "".
const HealthServiceName = "mirador.rollout.v1.RolloutIntelligence"

// GRPCHealthServer serves grpc.health.v1 for orchestrators that health-check over gRPC.
type GRPCHealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     logger.Logger
}

// NewGRPCHealthServer binds the listener immediately so port conflicts surface
// at startup. Callers skip it when the port is 0; tests use 0 for an
// ephemeral port.
func NewGRPCHealthServer(cfg config.GRPCConfig, log logger.Logger) (*GRPCHealthServer, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return nil, fmt.Errorf("listen on grpc health port %d: %w", cfg.HealthPort, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	grpc_prometheus.Register(grpcServer)

	if cfg.Reflection {
		reflection.Register(grpcServer)
	}

	return &GRPCHealthServer{
		grpcServer: grpcServer,
		health:     healthSrv,
		listener:   lis,
		logger:     log,
	}, nil
}

func (s *GRPCHealthServer) Start() error {
	s.logger.Info("gRPC health server starting", "address", s.Address())
	return s.grpcServer.Serve(s.listener)
}

// SetServing flips both the overall and the named service status.
func (s *GRPCHealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthServiceName, status)
}

// Shutdown attempts a graceful stop, falling back to Stop when ctx expires.
func (s *GRPCHealthServer) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address.
func (s *GRPCHealthServer) Address() string {
	return s.listener.Addr().String()
}
