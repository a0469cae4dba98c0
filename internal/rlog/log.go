// Package rlog provides the structured logger used across raftsim.
// Adapted near-verbatim from cuemby-warren/pkg/log: a zerolog.Logger with
// small With* helpers that attach the identifiers each layer of the
// simulator cares about.
package rlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's level constants under raftsim's own name, so
// callers don't need to import zerolog directly just to pick a level.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls how the base logger is constructed.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Logger wraps a zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

var base = newDefault()

func newDefault() Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return Logger{zerolog.New(out).Level(InfoLevel).With().Timestamp().Logger()}
}

// Init installs the process-wide base logger. Call once, early, from
// cmd/raftsim before any component logs.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	base = Logger{zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()}
}

// Base returns the process-wide base logger (a sane console default until
// Init is called).
func Base() Logger {
	return base
}

// WithComponent returns a child logger tagged with the given component
// name (e.g. "cluster", "bus", "raft").
func (l Logger) WithComponent(name string) Logger {
	return Logger{l.Logger.With().Str("component", name).Logger()}
}

// WithRunID tags the logger with a simulation run's correlation ID.
func (l Logger) WithRunID(runID string) Logger {
	return Logger{l.Logger.With().Str("run_id", runID).Logger()}
}

// WithNodeID tags the logger with a specific node's ID.
func (l Logger) WithNodeID(nodeID string) Logger {
	return Logger{l.Logger.With().Str("node_id", nodeID).Logger()}
}
