package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Trio-Ads/saloneo/libs/httpx"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// RequestIDMetadataKey is the lowercase metadata form of httpx.RequestIDHeader.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// UnaryServerRequestIDInterceptor applies the HTTP request id rules to
// incoming metadata and echoes the id in response headers.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if !httpx.ValidRequestID(id) {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(context.WithValue(ctx, ctxKeyRequestID, id), req)
	}
}

// UnaryServerAccessLogInterceptor logs server-side failures at error level
// and everything else at info.
func UnaryServerAccessLogInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unavailable, codes.DataLoss, codes.Unknown:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc request",
			"request_id", RequestIDFromContext(ctx),
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
