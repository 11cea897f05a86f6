package alertcache

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger provides structured logging for cache sync operations
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...interface{}) {}
func (l *NoOpLogger) Info(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Error(msg string, fields ...interface{}) {}

// StdLogger writes key-value lines through the standard log package.
// Good enough for the maintenance CLI and local development; production
// callers wire ZapLogger instead.
type StdLogger struct {
	logger *log.Logger
}

// NewStdLogger creates a logger writing to stderr under the given prefix.
func NewStdLogger(prefix string) *StdLogger {
	return NewStdLoggerTo(os.Stderr, prefix)
}

// NewStdLoggerTo creates a logger writing to an arbitrary destination.
func NewStdLoggerTo(w io.Writer, prefix string) *StdLogger {
	if prefix != "" {
		prefix += " "
	}
	return &StdLogger{logger: log.New(w, prefix, log.LstdFlags)}
}

func (l *StdLogger) Debug(msg string, fields ...interface{}) {
	l.write("DEBUG", msg, fields)
}

func (l *StdLogger) Info(msg string, fields ...interface{}) {
	l.write("INFO", msg, fields)
}

func (l *StdLogger) Warn(msg string, fields ...interface{}) {
	l.write("WARN", msg, fields)
}

func (l *StdLogger) Error(msg string, fields ...interface{}) {
	l.write("ERROR", msg, fields)
}

func (l *StdLogger) write(level, msg string, fields []interface{}) {
	var b strings.Builder
	b.WriteString("[" + level + "] " + msg)
	// Dangling keys without a value are dropped rather than guessed at.
	for i := 0; i+1 < len(fields); i += 2 {
		b.WriteString(" " + toString(fields[i]) + "=" + toString(fields[i+1]))
	}
	l.logger.Print(b.String())
}

func toString(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
