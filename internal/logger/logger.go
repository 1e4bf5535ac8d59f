// Package logger is the levelled logger shared by the CLI, the REST server
// and the valuation pipeline.
//
// Verbosity levels, in increasing order:
//
//	Error < Info < Debug < Trace
//
// Messages use an "event=name key=value" layout so they stay greppable:
//
//	logger.SetVerbosity(2)
//	logger.Infof("event=valuation_start ticker=%s", ticker)
//	logger.Debugf("event=simulate paths=%d", n)
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is a logging verbosity level. Higher values log more.
type Level int

const (
	Error Level = iota // failures that need attention
	Info               // lifecycle events
	Debug              // diagnostics
	Trace              // per-step detail
)

var current atomic.Int32

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)

func init() {
	current.Store(int32(Info))
}

func (l Level) String() string {
	switch l {
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts a level name or its number.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "0":
		return Error, nil
	case "info", "1":
		return Info, nil
	case "debug", "2":
		return Debug, nil
	case "trace", "3":
		return Trace, nil
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}

// SetVerbosity sets the global level. Out-of-range values clamp to
// Error or Trace.
func SetVerbosity(v int) {
	current.Store(int32(clamp(Level(v))))
}

// Verbosity returns the active level.
func Verbosity() Level { return Level(current.Load()) }

// SetOutput redirects log output, e.g. to a buffer in tests.
func SetOutput(w io.Writer) { std.SetOutput(w) }

func clamp(l Level) Level {
	if l < Error {
		return Error
	}
	if l > Trace {
		return Trace
	}
	return l
}

// calldepth 3 attributes the line to the caller of Errorf/Infof/...
func logf(l Level, prefix, format string, args ...any) {
	if Verbosity() >= l {
		_ = std.Output(3, prefix+fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...any) {
	logf(Error, "[ERROR] ", format, args...)
}

func Infof(format string, args ...any) {
	logf(Info, "[INFO]  ", format, args...)
}

func Debugf(format string, args ...any) {
	logf(Debug, "[DEBUG] ", format, args...)
}

// Tracef is for high-volume detail; keep it out of hot loops.
func Tracef(format string, args ...any) {
	logf(Trace, "[TRACE] ", format, args...)
}
