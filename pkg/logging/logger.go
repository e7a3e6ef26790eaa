package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level  LogLevel `json:"level"`
	Format string   `json:"format"` // "json" or "text"
	Output string   `json:"output"` // "stdout", "stderr", or file path
}

// DefaultLogConfig returns sensible default logging configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  LevelInfo,
		Format: "json",
		Output: "stdout",
	}
}

// Logger provides structured logging backed by slog.
type Logger struct {
	config  LogConfig
	slogger *slog.Logger
	file    *os.File
}

// NewLogger creates a new structured logger
func NewLogger(config LogConfig) (*Logger, error) {
	logger := &Logger{config: config}

	var writer io.Writer
	switch config.Output {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(config.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.file = file
		writer = file
	}

	opts := &slog.HandlerOptions{Level: slogLevel(config.Level)}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	logger.slogger = slog.New(handler)
	return logger, nil
}

// Close releases the log file when file output is configured.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// WithComponent returns a logger with component information
func (l *Logger) WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{logger: l, component: component}
}

// ComponentLogger provides component-specific logging
type ComponentLogger struct {
	logger    *Logger
	component string
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, "", fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, "", fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, "", fields...) }

func (l *Logger) Error(msg string, err error, fields ...Field) {
	l.log(LevelError, msg, errString(err), fields...)
}

// Fatal logs at fatal level and exits
func (l *Logger) Fatal(msg string, err error, fields ...Field) {
	l.log(LevelFatal, msg, errString(err), fields...)
	l.Close()
	os.Exit(1)
}

func (cl *ComponentLogger) Debug(msg string, fields ...Field) {
	cl.logger.log(LevelDebug, msg, "", append(fields, String("component", cl.component))...)
}

func (cl *ComponentLogger) Info(msg string, fields ...Field) {
	cl.logger.log(LevelInfo, msg, "", append(fields, String("component", cl.component))...)
}

func (cl *ComponentLogger) Warn(msg string, fields ...Field) {
	cl.logger.log(LevelWarn, msg, "", append(fields, String("component", cl.component))...)
}

func (cl *ComponentLogger) Error(msg string, err error, fields ...Field) {
	cl.logger.log(LevelError, msg, errString(err), append(fields, String("component", cl.component))...)
}

func (l *Logger) log(level LogLevel, msg, errorStr string, fields ...Field) {
	if level < l.config.Level {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+2)
	if errorStr != "" {
		attrs = append(attrs, slog.String("error", errorStr))
	}
	// Caller info only for warnings and worse; cheap enough there.
	if level >= LevelWarn {
		if _, file, line, ok := runtime.Caller(2); ok {
			attrs = append(attrs, slog.String("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line)))
		}
	}
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}

	l.slogger.LogAttrs(context.Background(), slogLevel(level), msg, attrs...)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors
func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Duration(key string, v time.Duration) Field { return Field{Key: key, Value: v} }
func Any(key string, value interface{}) Field    { return Field{Key: key, Value: value} }

func Error(err error) Field { return Field{Key: "error", Value: err.Error()} }

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
