package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/nursery-speaker/internal/logger"
)

const (
	// PlayerService is SERVING while the playback loop ticks.
	PlayerService = "nursery.Player"
	// PollerService is SERVING while the command source answers.
	PollerService = "nursery.Poller"

	// stopTimeout bounds the graceful stop before open streams are cut.
	stopTimeout = 2 * time.Second
)

// Server is the gRPC health endpoint. A nil *Server accepts status updates and ignores them.
type Server struct {
	// grpcServer serves the health API.
	grpcServer *grpc.Server
	// health holds the per-service statuses.
	health *health.Server
}

// NewServer creates a health server with every service NOT_SERVING.
func NewServer() *Server {
	h := health.NewServer()

	for _, service := range []string{PlayerService, PollerService} {
		h.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, h)

	return &Server{
		grpcServer: grpcServer,
		health:     h,
	}
}

// SetServing updates the status of service.
func (s *Server) SetServing(service string, serving bool) {
	if s == nil {
		return
	}

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus(service, status)
}

// ListenAndServe listens on address and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return s.Serve(ctx, lis)
}

// Serve blocks serving lis until ctx is canceled or the server fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "status")

	logger.InfoKV(ctx, "Health endpoint listening", "listen_address", lis.Addr().String())

	// Done channel is closed after the server fully stops.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down health endpoint")
		s.health.Shutdown()
		s.stop()
		close(done)
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Health endpoint stopped")

	return nil
}

// stop drains in-flight calls; health watchers never end on their own, so
// they are cut after stopTimeout.
func (s *Server) stop() {
	stopped := make(chan struct{})

	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		s.grpcServer.Stop()
	}
}
