package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger is the diagnostic logger used by the engine and tool adapters.
// Implement this interface to plug in a custom logger.
type Logger interface {
	// Debug logs a debug message
	Debug(format string, args ...interface{})

	// Info logs an info message
	Info(format string, args ...interface{})

	// Warn logs a warning message
	Warn(format string, args ...interface{})

	// Error logs an error message
	Error(format string, args ...interface{})
}

// LogFilter is the minimum level a DefaultLogger prints.
type LogFilter int

const (
	LogFilterDebug LogFilter = iota
	LogFilterInfo
	LogFilterWarn
	LogFilterError
	LogFilterSilent
)

// ParseLogFilter parses "debug", "info", "warn", "error" or "silent".
func ParseLogFilter(s string) LogFilter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogFilterDebug
	case "warn", "warning":
		return LogFilterWarn
	case "error":
		return LogFilterError
	case "silent", "off", "none":
		return LogFilterSilent
	default:
		return LogFilterInfo
	}
}

// DefaultLogger writes leveled lines through the standard library logger.
type DefaultLogger struct {
	level  LogFilter
	prefix string
	logger *log.Logger
}

// NewDefaultLogger creates a new default logger writing to stderr.
func NewDefaultLogger(prefix string, level LogFilter) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		prefix: prefix,
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetOutput sets the output writer.
func (l *DefaultLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetLevel sets the log level.
func (l *DefaultLogger) SetLevel(level LogFilter) {
	l.level = level
}

// Debug logs a debug message.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	if l.level <= LogFilterDebug {
		l.log("DEBUG", format, args...)
	}
}

// Info logs an info message.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	if l.level <= LogFilterInfo {
		l.log("INFO", format, args...)
	}
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	if l.level <= LogFilterWarn {
		l.log("WARN", format, args...)
	}
}

// Error logs an error message.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	if l.level <= LogFilterError {
		l.log("ERROR", format, args...)
	}
}

func (l *DefaultLogger) log(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.logger.Printf("[%s] [%s] %s", l.prefix, level, msg)
	} else {
		l.logger.Printf("[%s] %s", level, msg)
	}
}

// NopLogger is a no-op logger that discards all messages.
type NopLogger struct{}

func (l *NopLogger) Debug(format string, args ...interface{}) {}
func (l *NopLogger) Info(format string, args ...interface{})  {}
func (l *NopLogger) Warn(format string, args ...interface{})  {}
func (l *NopLogger) Error(format string, args ...interface{}) {}

// PrintfLogger writes unleveled lines to a writer. The CLI uses it for
// -verbose output on stderr.
type PrintfLogger struct {
	prefix string
	out    io.Writer
}

// NewPrintfLogger creates a printf logger writing to w (stderr when nil).
func NewPrintfLogger(prefix string, w io.Writer) *PrintfLogger {
	if w == nil {
		w = os.Stderr
	}
	return &PrintfLogger{prefix: prefix, out: w}
}

func (l *PrintfLogger) Debug(format string, args ...interface{}) { l.print(format, args...) }
func (l *PrintfLogger) Info(format string, args ...interface{})  { l.print(format, args...) }
func (l *PrintfLogger) Warn(format string, args ...interface{})  { l.print(format, args...) }
func (l *PrintfLogger) Error(format string, args ...interface{}) { l.print(format, args...) }

func (l *PrintfLogger) print(format string, args ...interface{}) {
	if l.prefix != "" {
		fmt.Fprintf(l.out, "[%s] %s\n", l.prefix, fmt.Sprintf(format, args...))
	} else {
		fmt.Fprintf(l.out, "%s\n", fmt.Sprintf(format, args...))
	}
}

// LoggerFromVerbose returns a debug-level DefaultLogger when verbose is set,
// otherwise a NopLogger.
func LoggerFromVerbose(prefix string, verbose bool) Logger {
	if verbose {
		return NewDefaultLogger(prefix, LogFilterDebug)
	}
	return &NopLogger{}
}

// LogToLogger forwards an observer log entry to a Logger.
func LogToLogger(l Logger, entry LogEntry) {
	msg := entry.Message
	if entry.Source != "" {
		msg = entry.Source + ": " + msg
	}
	switch entry.Level {
	case LogDebug:
		l.Debug("%s", msg)
	case LogWarning:
		l.Warn("%s", msg)
	case LogError:
		l.Error("%s", msg)
	default:
		l.Info("%s", msg)
	}
}

// Ensure implementations satisfy the interface
var (
	_ Logger = (*DefaultLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*PrintfLogger)(nil)
)
