package httpapi

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the standard gRPC health service so orchestrators
// probing over gRPC see the same readiness signal as /readyz.
type GRPCHealthServer struct {
	srv    *grpc.Server
	health *health.Server
}

func NewGRPCHealthServer() *GRPCHealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCHealthServer{srv: srv, health: hs}
}

// SetServing flips the reported status for the whole service.
func (s *GRPCHealthServer) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *GRPCHealthServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *GRPCHealthServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
