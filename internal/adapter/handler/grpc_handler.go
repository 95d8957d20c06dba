package handler

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ShopServiceName is the health service name reported next to the overall "" entry.
const ShopServiceName = "shopcart.Shop"

// GRPCHandler exposes the health protocol and server reflection.
type GRPCHandler struct {
	server *grpc.Server
	health *health.Server
}

func NewGRPCHandler(log zerolog.Logger) *GRPCHandler {
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(log)))
	healthServer := health.NewServer()

	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	h := &GRPCHandler{server: server, health: healthServer}
	h.SetServing(true)
	return h
}

func (h *GRPCHandler) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(ShopServiceName, st)
}

func (h *GRPCHandler) Serve(lis net.Listener) error {
	return h.server.Serve(lis)
}

// GracefulStop reports NOT_SERVING to watchers before draining connections.
func (h *GRPCHandler) GracefulStop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

func LoggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := log.Debug()
		if err != nil {
			event = log.Warn().Err(err)
		}
		event.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}
