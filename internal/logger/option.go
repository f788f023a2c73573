package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapgrpc"
)

// coreWithLevel overrides the level of a wrapped core.
type coreWithLevel struct {
	zapcore.Core

	// level replaces the level of the wrapped core.
	level zapcore.Level
}

// Enabled reports whether l passes the overriding level.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to the entry when its level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{c.Core.With(fields), c.level}
}

// WithLevel makes a derived logger use lvl regardless of the original level.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &coreWithLevel{core, lvl}
	})
}

// GRPC adapts the global logger for grpclog.SetLoggerV2. gRPC is chatty at
// info level, so only messages at lvl and above pass.
func GRPC(lvl zapcore.Level) *zapgrpc.Logger {
	return zapgrpc.NewLogger(global.Desugar().Named("grpc").WithOptions(WithLevel(lvl)))
}
