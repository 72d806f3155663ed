package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger is the logging interface the rest of the service depends on.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// Level is a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Format selects the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// LogEntry is one emitted log line.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// DefaultLogger is the standard leveled logger implementation.
type DefaultLogger struct {
	level  Level
	format Format
	output io.Writer
	mu     sync.Mutex
}

// Config holds logger configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error", "fatal"
	Format string // "text", "json"
	Output string // "stdout", "stderr", or file path
}

// NewLogger creates a new logger.
func NewLogger(cfg *Config) (*DefaultLogger, error) {
	level := parseLevel(cfg.Level)
	format := parseFormat(cfg.Format)

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
	}

	return &DefaultLogger{
		level:  level,
		format: format,
		output: output,
	}, nil
}

func parseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func parseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

func (l *DefaultLogger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     levelString(level),
		Message:   msg,
		Fields:    make(map[string]interface{}),
	}

	// fields are alternating key-value pairs
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key := fmt.Sprintf("%v", fields[i])
			entry.Fields[key] = fields[i+1]
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var output string
	if l.format == FormatJSON {
		data, _ := json.Marshal(entry)
		output = string(data)
	} else {
		output = fmt.Sprintf("[%s] %s: %s", entry.Timestamp, entry.Level, entry.Message)
		if len(entry.Fields) > 0 {
			output += fmt.Sprintf(" %v", entry.Fields)
		}
	}

	fmt.Fprintln(l.output, output)

	if level == LevelFatal {
		os.Exit(1)
	}
}

func levelString(l Level) string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Debug logs at debug level.
func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs at info level.
func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs at warn level.
func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs at error level.
func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.log(LevelError, msg, fields...)
}

// Fatal logs at fatal level and exits.
func (l *DefaultLogger) Fatal(msg string, fields ...interface{}) {
	l.log(LevelFatal, msg, fields...)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...interface{}) {}
func (nopLogger) Info(msg string, fields ...interface{})  {}
func (nopLogger) Warn(msg string, fields ...interface{})  {}
func (nopLogger) Error(msg string, fields ...interface{}) {}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }
