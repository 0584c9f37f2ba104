package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
		"dpanic":  zapcore.DPanicLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger checks a logger stored in a context is returned and the
// global one is the fallback.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	assert.Same(t, Logger(), FromContext(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core).Sugar()

	ctx := WithName(ToContext(context.Background(), l), "serial")
	ctx = WithKV(ctx, "path", "/dev/ttyUSB0")
	InfoKV(ctx, "opened", "baud", 19200)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "opened", entry.Message)
	assert.Equal(t, "serial", entry.LoggerName)
	assert.Equal(t, "/dev/ttyUSB0", entry.ContextMap()["path"])
	assert.EqualValues(t, 19200, entry.ContextMap()["baud"])
}

// TestDiagnosticSink checks diagnostic lines are logged under the panel name.
func TestDiagnosticSink(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewDiagnosticSink(zap.New(core).Sugar())

	sink.WriteLine("user logged in: Kevin")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "user logged in: Kevin", logs.All()[0].Message)
	assert.Equal(t, "panel", logs.All()[0].LoggerName)
}
