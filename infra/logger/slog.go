package logger

import (
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// slogOff is above every level slog emits.
const slogOff = slog.LevelError + 64

// SlogLevel maps a zerolog level to its slog counterpart.
func SlogLevel(l zerolog.Level) slog.Level {
	switch l {
	case zerolog.TraceLevel:
		return slog.LevelDebug - 4
	case zerolog.DebugLevel:
		return slog.LevelDebug
	case zerolog.InfoLevel:
		return slog.LevelInfo
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.ErrorLevel:
		return slog.LevelError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return slog.LevelError + 4
	case zerolog.NoLevel:
		return slog.LevelInfo
	default:
		return slogOff
	}
}

// NewSlog returns a text slog.Logger on stderr for libraries that log through
// log/slog, filtered by the same LOG_LEVEL as the zerolog loggers.
func NewSlog(component string) *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: SlogLevel(ParseLevel(os.Getenv("LOG_LEVEL"))),
	})
	return slog.New(h).With("component", component)
}
