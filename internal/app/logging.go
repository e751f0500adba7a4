package app

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int32

const (
	// LogLevelDebug is for per-tick and per-row tracing.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for mode changes, saves and reloads.
	LogLevelInfo
	// LogLevelWarn is for failures the session recovers from.
	LogLevelWarn
	// LogLevelError is for failed playback runs and loops.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name. Unknown names map to LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// sink is shared by a logger and every logger derived from it, so a level
// change reaches component loggers handed out earlier.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	level  atomic.Int32
	prefix string
}

func (s *sink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, line)
}

type field struct {
	key   string
	value any
}

// Logger is a levelled printf-style logger with sorted key=value fields.
// A Logger with no sink discards everything.
type Logger struct {
	sink   *sink
	fields []field
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is prepended to all log messages.
	Prefix string
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  LogLevelInfo,
		Output: os.Stderr,
		Prefix: "clickstorm",
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	s := &sink{out: cfg.Output, prefix: cfg.Prefix}
	s.level.Store(int32(cfg.Level))
	return &Logger{sink: s}
}

// WithField returns a logger that adds key=value to every line.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields returns a logger that adds fields to every line. The receiver
// is not modified.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	merged := slices.Clone(l.fields)
	for k, v := range fields {
		i, found := slices.BinarySearchFunc(merged, k, func(f field, k string) int {
			return strings.Compare(f.key, k)
		})
		if found {
			merged[i].value = v
			continue
		}
		merged = slices.Insert(merged, i, field{key: k, value: v})
	}
	return &Logger{sink: l.sink, fields: merged}
}

// WithComponent returns a logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// SetLevel sets the minimum level for this logger and every logger derived
// from it.
func (l *Logger) SetLevel(level LogLevel) {
	if l.sink != nil {
		l.sink.level.Store(int32(level))
	}
}

// Level returns the minimum level.
func (l *Logger) Level() LogLevel {
	if l.sink == nil {
		return LogLevelError + 1
	}
	return LogLevel(l.sink.level.Load())
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LogLevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LogLevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LogLevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LogLevelError, msg, args...)
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if l.sink == nil || level < l.Level() {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000"))
	fmt.Fprintf(&b, " [%s] ", level)
	if l.sink.prefix != "" {
		b.WriteString(l.sink.prefix)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	if len(l.fields) > 0 {
		b.WriteString(" {")
		for i, f := range l.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", f.key, f.value)
		}
		b.WriteString("}")
	}
	b.WriteByte('\n')

	l.sink.write(b.String())
}

// NullLogger discards all output.
var NullLogger = &Logger{}

var (
	appLogger   *Logger
	appLoggerMu sync.Mutex
)

// GetLogger returns the process logger, creating a default one on first
// use.
func GetLogger() *Logger {
	appLoggerMu.Lock()
	defer appLoggerMu.Unlock()
	if appLogger == nil {
		appLogger = NewLogger(DefaultLoggerConfig())
	}
	return appLogger
}

// SetLogger replaces the process logger. Call it before New.
func SetLogger(l *Logger) {
	appLoggerMu.Lock()
	defer appLoggerMu.Unlock()
	appLogger = l
}

// Logger returns the application's logger.
func (app *Application) Logger() *Logger {
	return app.logger
}
