package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/whispin/modloader/internal/injector"
)

var _ injector.Logger = (*LoggerAdapter)(nil)

func TestLoggerAdapterLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerAdapter(zap.New(core))

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "warn msg", entries[2].Message)
}

func TestLoggerAdapterFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerAdapter(zap.New(core))

	l.Info("Injecting",
		"module", "samp.dll",
		"index", 1,
		"pid", uint32(300),
		"suspended", true,
		"error", errors.New("boom"),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "samp.dll", ctx["module"])
	assert.Equal(t, int64(1), ctx["index"])
	assert.Equal(t, uint32(300), ctx["pid"])
	assert.Equal(t, true, ctx["suspended"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestConvertToZapFieldsOddAndNonStringKeys(t *testing.T) {
	fields := convertToZapFields("module", "a.dll", 7, "seven", "dangling")

	require.Len(t, fields, 3)
	assert.Equal(t, "module", fields[0].Key)
	assert.Equal(t, "7", fields[1].Key)
	assert.Equal(t, "dangling", fields[2].Key)
	assert.Equal(t, "", fields[2].String)
}
