package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" Info ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"dpanic": zapcore.DPanicLevel,
		"panic":  zapcore.PanicLevel,
		"FATAL":  zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	_, ok := ParseLogLevel("loud")
	require.False(t, ok)
}

// TestValidFormat checks the accepted output formats.
func TestValidFormat(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "console", "JSON"} {
		require.True(t, ValidFormat(format), format)
	}

	require.False(t, ValidFormat("xml"))
}

// TestContextLogger verifies that FromContext falls back to the global logger and
// returns the scoped logger once one is stored.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	scoped := zap.New(core).Sugar()
	ctx := ToContext(context.Background(), scoped)
	require.Same(t, scoped, FromContext(ctx))

	ctx = WithKV(WithName(ctx, "poll"), "pin", 3)
	InfoKV(ctx, "Input changed", "active", true)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "poll", entries[0].LoggerName)
	require.Equal(t, map[string]any{"pin": int64(3), "active": true}, entries[0].ContextMap())
}

// TestWithLevel checks that the option both raises and lowers the level.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)

	quiet := zap.New(core, WithLevel(zapcore.WarnLevel))
	quiet.Info("hidden")
	quiet.Warn("shown")

	verbose := zap.New(core, WithLevel(zapcore.DebugLevel))
	verbose.Debug("shown too")

	require.Equal(t, 2, logs.Len())
	require.Equal(t, "shown", logs.All()[0].Message)
	require.Equal(t, "shown too", logs.All()[1].Message)
}

// TestGRPC checks that gRPC info chatter is dropped and warnings pass.
// It swaps the global logger, so it does not run in parallel.
//
//nolint:paralleltest // Mutates the global logger.
func TestGRPC(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	previous := Logger()
	SetLogger(zap.New(core).Sugar())

	t.Cleanup(func() { SetLogger(previous) })

	adapter := GRPC(zapcore.WarnLevel)
	adapter.Info("channel created")
	adapter.Warning("transport closed")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "transport closed", entries[0].Message)
	require.Equal(t, "grpc", entries[0].LoggerName)
}
