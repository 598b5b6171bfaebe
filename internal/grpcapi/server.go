package grpcapi

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"calculator-api/internal/service"
)

// Server registers the calculator and health services and listens on addr.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	addr   string
}

// NewServer builds the gRPC server. Interceptors run recovery outermost,
// then logging.
func NewServer(addr string, svc *service.Service, log *zap.Logger) *Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryUnaryInterceptor(log),
		LoggingUnaryInterceptor(log),
	))
	RegisterCalculatorServiceServer(s, NewCalculator(svc, log))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return &Server{grpc: s, health: hs, addr: addr}
}

// Start listens on addr and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks the services NOT_SERVING and drains in-flight RPCs until ctx
// expires, then closes remaining connections.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}
