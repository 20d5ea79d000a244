// Package logging builds the structured loggers shared by the CLI and the
// updater process.
package logging

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

// Prefix is prepended to every log line, matching the CLI's user-facing
// message prefix.
const Prefix = "lista-tools"

// New returns a logger writing to w at the given level. LogLevelNone yields
// a logger that discards everything.
func New(w io.Writer, level types.LogLevel) *log.Logger {
	if level.IsSilent() || w == nil {
		w = io.Discard
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: Prefix,
		Level:  Level(level),
	})
}

// Discard returns a logger that drops all output. Components use it when no
// logger was supplied.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Level maps a configured LogLevel onto the charmbracelet/log level scale.
// "full" means every step is reported, which is Info.
func Level(level types.LogLevel) log.Level {
	switch level {
	case types.LogLevelDebug:
		return log.DebugLevel
	case types.LogLevelFull:
		return log.InfoLevel
	case types.LogLevelWarn:
		return log.WarnLevel
	case types.LogLevelError:
		return log.ErrorLevel
	case types.LogLevelNone:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
