package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 1.0, cfg.TimeScale)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HOLODECK_TICK_INTERVAL", "250ms")
	t.Setenv("HOLODECK_TIME_SCALE", "60")
	t.Setenv("HOLODECK_LOG_LEVEL", "debug")
	t.Setenv("HOLODECK_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 60.0, cfg.TimeScale)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name, key, value, want string
	}{
		{"bad duration", "HOLODECK_TICK_INTERVAL", "soon", "parse environment"},
		{"zero tick", "HOLODECK_TICK_INTERVAL", "0s", "tick interval must be positive"},
		{"negative scale", "HOLODECK_TIME_SCALE", "-2", "time scale must be positive"},
		{"bad level", "HOLODECK_LOG_LEVEL", "loud", "unknown log level"},
		{"bad format", "HOLODECK_LOG_FORMAT", "xml", "unknown log format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLogger_Formats(t *testing.T) {
	var buf bytes.Buffer

	cfg := Config{LogLevel: "info", LogFormat: "json"}
	cfg.Logger(&buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg = Config{LogLevel: "warn", LogFormat: "text"}
	log := cfg.Logger(&buf)
	log.Info("dropped")
	log.Warn("kept")
	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}
