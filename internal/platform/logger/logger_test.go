package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/lexis-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
	}
}

func TestSetupWritesJSONAtConfiguredLevel(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	buf := &TestLogBuffer{}
	log := setup(config.ServerConfig{LogLevel: "warn"}, buf)

	log.Info("dropped")
	log.Warn("kept", slog.String("user_id", "u-1"))

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "u-1", entries[0]["user_id"])
}

func TestContextLogger(t *testing.T) {
	custom, _ := NewTestLogger()
	fallback := slog.New(slog.NewTextHandler(&TestLogBuffer{}, nil))

	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, custom, FromContextOrDefault(WithLogger(context.Background(), custom), fallback))
	assert.Same(t, custom, FromContext(WithLogger(context.Background(), custom)))
	assert.Panics(t, func() { WithLogger(context.Background(), nil) })
}
