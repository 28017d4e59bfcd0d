package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSlogLevel(t *testing.T) {
	cases := map[zerolog.Level]slog.Level{
		zerolog.DebugLevel: slog.LevelDebug,
		zerolog.InfoLevel:  slog.LevelInfo,
		zerolog.WarnLevel:  slog.LevelWarn,
		zerolog.ErrorLevel: slog.LevelError,
	}
	for in, want := range cases {
		assert.Equal(t, want, SlogLevel(in), in.String())
	}
	assert.Less(t, SlogLevel(zerolog.TraceLevel), slog.LevelDebug)
	assert.Greater(t, SlogLevel(zerolog.Disabled), slog.LevelError)
}

func TestNewSlogHonoursLogLevel(t *testing.T) {
	ctx := context.Background()

	t.Setenv("LOG_LEVEL", "error")
	l := NewSlog("broker")
	assert.False(t, l.Enabled(ctx, slog.LevelInfo))
	assert.True(t, l.Enabled(ctx, slog.LevelError))

	t.Setenv("LOG_LEVEL", "debug")
	assert.True(t, NewSlog("broker").Enabled(ctx, slog.LevelDebug))

	t.Setenv("LOG_LEVEL", "off")
	assert.False(t, NewSlog("broker").Enabled(ctx, slog.LevelError))
}
