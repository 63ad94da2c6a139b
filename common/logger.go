package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger defines the structured logging interface used throughout conflate4go.
//
// Callers pass alternating key/value pairs after the message:
//
//	logger.Info("command dispatched", "command", name, "result", result)
//
// Built-in implementations:
//   - NopLogger()     silent, the default when no logger is configured
//   - NewStdLogger()  wraps Go's standard log package
//   - NewZapLogger()  zap with optional lumberjack file rotation
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger returns a Logger that discards all output.
func NopLogger() Logger { return nopLogger{} }

// stdLogger writes one line per entry through a standard log.Logger.
type stdLogger struct {
	l        *log.Logger
	minLevel int
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = [...]string{"DEBUG:", "INFO:", "WARN:", "ERROR:"}

func (s *stdLogger) output(level int, msg string, kv []interface{}) {
	if level < s.minLevel {
		return
	}
	s.l.Println(levelNames[level], formatLogMsg(msg, kv))
}

func (s *stdLogger) Debug(msg string, kv ...interface{}) { s.output(levelDebug, msg, kv) }
func (s *stdLogger) Info(msg string, kv ...interface{})  { s.output(levelInfo, msg, kv) }
func (s *stdLogger) Warn(msg string, kv ...interface{})  { s.output(levelWarn, msg, kv) }
func (s *stdLogger) Error(msg string, kv ...interface{}) { s.output(levelError, msg, kv) }

// NewStdLogger creates a Logger backed by Go's standard log package.
// If writer is nil, os.Stderr is used. Debug entries are dropped unless
// debug is set.
func NewStdLogger(writer io.Writer, prefix string, debug bool) Logger {
	if writer == nil {
		writer = os.Stderr
	}
	s := &stdLogger{l: log.New(writer, prefix, log.LstdFlags), minLevel: levelInfo}
	if debug {
		s.minLevel = levelDebug
	}
	return s
}

// OrNop returns l, or NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// formatLogMsg renders a message and its key/value pairs on one line.
func formatLogMsg(msg string, kv []interface{}) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 != 0 {
		fmt.Fprintf(&b, " EXTRA=%v", kv[len(kv)-1])
	}
	return b.String()
}
