package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/pkg/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddCaller)
}

func TestNewLoggerFromConfig(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	path := filepath.Join(t.TempDir(), "foundry.log")
	logger := logging.NewLoggerFromConfig(&logging.Config{
		Level:  "debug",
		Format: "json",
		Output: path,
		Fields: map[string]any{"service": "foundry"},
	})
	logger.Info().Msg("ingesting projects")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "ingesting projects")
	assert.Contains(t, string(content), `"service":"foundry"`)
}

func TestLevelParsing(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := logging.NewLoggerFromConfig(&logging.Config{Level: tt.level, Output: "discard", Format: "json"})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestContextFields(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	ctx = logging.WithRunID(ctx, "run-123")
	ctx = logging.WithObjectType(ctx, "project")
	ctx = logging.WithObject(ctx, "Proj-A")
	ctx = logging.WithOperation(ctx, "match")
	logging.FromContext(ctx).Warn().Msg("project blocked")

	assert.Equal(t, "run-123", logging.RunID(ctx))
	assert.Len(t, tl.Lines(), 1)
	for _, want := range []string{`"run_id":"run-123"`, `"object_type":"project"`, `"name":"Proj-A"`, `"operation":"match"`} {
		assert.Equal(t, 1, strings.Count(tl.Output(), want), "want %s once in %s", want, tl.Output())
	}
}

func TestFromContextDefaults(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	assert.Equal(t, logging.Default(), logging.FromContext(nil))
	assert.Equal(t, logging.Default(), logging.FromContext(context.Background()))
	assert.Empty(t, logging.RunID(context.Background()))
}

func TestCaptureLoggingForTest(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)
	logging.Info().Str("object_type", "dataset").Msg("captured")
	assert.True(t, tl.Contains("captured"))
}
