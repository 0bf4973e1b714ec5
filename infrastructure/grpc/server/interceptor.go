package server

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// StreamLoggingInterceptor logs every streaming call once it ends,
// with its duration and the resulting status code.
func StreamLoggingInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		remote := "unknown"
		if p, ok := peer.FromContext(ss.Context()); ok {
			remote = p.Addr.String()
		}
		log.Debug("Stream opened", "method", info.FullMethod, "peer", remote)

		err := handler(srv, ss)

		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "peer", remote, "code", code.String(), "duration", time.Since(start)}
		if err != nil {
			log.Warn("Stream ended with error", append(attrs, "error", err)...)
			return err
		}
		log.Info("Stream ended", attrs...)
		return nil
	}
}
