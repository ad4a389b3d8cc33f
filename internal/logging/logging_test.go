package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_SetLevel(t *testing.T) {
	h, err := New(Options{Level: "info", Format: "json"})
	require.NoError(t, err)
	defer h.Close()

	assert.False(t, h.Logger.Core().Enabled(zapcore.DebugLevel))

	h.SetLevel("debug")
	assert.True(t, h.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.log")

	h, err := New(Options{Level: "info", Format: "console", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	h.Logger.Info("written to file")
	require.NoError(t, h.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	id := NewRequestID()
	assert.Len(t, id, 36)
	assert.Equal(t, id, RequestIDFromContext(WithRequestID(ctx, id)))
}
