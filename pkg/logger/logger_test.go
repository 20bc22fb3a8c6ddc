package logger

import (
	"path/filepath"
	"testing"

	"assessment_engine_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelPrefersConfiguredValue(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, Level("WARN", "debug"))
	assert.Equal(t, zapcore.DebugLevel, Level("", "debug"))
	assert.Equal(t, zapcore.InfoLevel, Level("", "release"))
	// 无法解析时按运行模式
	assert.Equal(t, zapcore.InfoLevel, Level("verbose", "release"))
}

func TestScopedLoggersCarryIdentifiers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = prev })

	ForSubmission("sub-1").Info("Attempt closed")
	ForCandidate(7, 42).Info("Attempt denied")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "sub-1", entries[0].ContextMap()[FieldSubmissionID])
	assert.EqualValues(t, 7, entries[1].ContextMap()[FieldAssessmentID])
	assert.EqualValues(t, 42, entries[1].ContextMap()[FieldUserID])
}

func TestNewCoreSkipsFileWhenUnset(t *testing.T) {
	core := newCore(config.LogConfig{Level: "error"}, "debug", zapcore.AddSync(&nopWriter{}))
	assert.False(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	file := filepath.Join(t.TempDir(), "app.log")
	core = newCore(config.LogConfig{File: file, MaxSizeMB: 1}, "release", zapcore.AddSync(&nopWriter{}))
	logger := zap.New(core)
	logger.Info("written to file")
	require.NoError(t, logger.Sync())
	assert.FileExists(t, file)
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
