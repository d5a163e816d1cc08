package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Level and console formatting can be
// tightened later via Configure once config is loaded.
func New() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Configure applies the configured level and output format to a logger.
func Configure(log zerolog.Logger, level string, pretty, noColor bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	log = log.Level(lvl)

	if pretty {
		log = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
		})
	}

	return log
}
