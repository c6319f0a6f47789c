package server

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"go.uber.org/zap"
)

// LoggingInterceptor logs every unary call with its procedure, duration and outcome.
func LoggingInterceptor(logger *zap.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("procedure", req.Spec().Procedure),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, zap.String("code", connect.CodeOf(err).String()), zap.Error(err))
				if connect.CodeOf(err) == connect.CodeInternal {
					logger.Error("rpc failed", fields...)
				} else {
					logger.Info("rpc rejected", fields...)
				}
				return resp, err
			}
			logger.Info("rpc", fields...)
			return resp, nil
		}
	}
}
