package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher("", func(*Config) {}, nil)
	assert.Error(t, err)

	_, err = NewWatcher("catalog.yaml", nil, nil)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c }, zap.NewNop())
	require.NoError(t, err)
	w.SetDebounceTimeout(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	defer w.Stop()

	assert.Error(t, w.Watch(ctx), "second Watch must fail")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}

func TestWatcher_IgnoresInvalidFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c }, nil)
	require.NoError(t, err)
	w.SetDebounceTimeout(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Watch(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("log: [broken"), 0o600))

	select {
	case <-changes:
		t.Fatal("invalid config must not be applied")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(writeConfig(t, ""), func(*Config) {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch(context.Background()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
