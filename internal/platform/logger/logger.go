package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a structured logger configured from the given level and format.
// Format "console" is for local development; everything else emits JSON.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(lvl).With().Timestamp().Logger()
}
