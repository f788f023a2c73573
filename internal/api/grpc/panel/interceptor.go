package panel

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/tracer"
)

// UnaryInterceptor traces and logs every control call.
func UnaryInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	log := logger.FromContext(base)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, log.With("method", info.FullMethod))

		ctx, span := tracer.StartSpan(ctx, info.FullMethod)

		resp, err := handler(ctx, req)

		span.SetAttributes(tracer.StringAttr("rpc.grpc.status_code", status.Code(err).String()))
		tracer.End(span, err)

		if err != nil {
			logger.WarnKV(ctx, "Control call failed", "error", err)
		} else {
			logger.DebugKV(ctx, "Control call handled")
		}

		return resp, err
	}
}
