package grpcapi

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor logs each unary RPC with method, latency and code.
func LoggingUnaryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		if err != nil {
			st, _ := status.FromError(err)
			fields = append(fields, zap.String("grpc_code", st.Code().String()), zap.String("error", st.Message()))
			log.Warn("grpc request", fields...)
			return resp, err
		}
		fields = append(fields, zap.String("grpc_code", codes.OK.String()))
		log.Info("grpc request", fields...)
		return resp, nil
	}
}

// RecoveryUnaryInterceptor turns a handler panic into codes.Internal. The
// panic value is logged, never sent to the client.
func RecoveryUnaryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("grpc panic recovered",
					zap.String("method", info.FullMethod),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, internalErrorMessage)
			}
		}()
		return handler(ctx, req)
	}
}
