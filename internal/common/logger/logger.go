// Package logger configures the process-wide zerolog logger. In debug mode
// output goes through a human-readable console writer; otherwise structured
// JSON is written straight to stdout so log collectors can parse it.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Init(serviceName string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"
	zerolog.DurationFieldUnit = time.Millisecond

	var out zerolog.Logger
	if debug {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		out = zerolog.New(console).Level(zerolog.DebugLevel)
	} else {
		out = zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	}

	log.Logger = out.With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Info().Bool("debug", debug).Msg("logger initialized")
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

// Fatal logs and exits the process.
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// With returns a sublogger tagged with a component name, for long-lived
// services and workers.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
