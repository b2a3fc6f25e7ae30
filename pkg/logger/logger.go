// Package logger provides structured logging utilities.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options selects level, encoding and destination of a logger.
type Options struct {
	Level  string
	Format string
	// Output is a zap sink path; empty means stdout.
	Output string
}

// Build creates a logger from opts.
func Build(opts Options) (*Logger, error) {
	enc := encoderConfig()
	switch opts.Format {
	case "", FormatJSON:
		opts.Format = FormatJSON
	case FormatConsole:
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	if opts.Output == "" {
		opts.Output = "stdout"
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(opts.Level)),
		Development:      opts.Format == FormatConsole,
		Encoding:         opts.Format,
		EncoderConfig:    enc,
		OutputPaths:      []string{opts.Output},
		ErrorOutputPaths: []string{"stderr"},
	}

	zl, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: zl}, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named creates a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// WithContext creates a child logger carrying the request correlation id and caller.
func (l *Logger) WithContext(correlationID, userID string) *Logger {
	fields := []zap.Field{zap.String("correlation_id", correlationID)}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return l.With(fields...)
}

// ForConversation tags entries with a conversation id.
func (l *Logger) ForConversation(conversationID string) *Logger {
	return l.With(zap.String("conversation_id", conversationID))
}

func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zapcore.WarnLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

var global atomic.Pointer[Logger]

// Global returns the process logger, building a default one on first use.
func Global() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	opts := Options{Level: os.Getenv("LOG_LEVEL"), Format: FormatJSON}
	if os.Getenv("ENV") == "development" {
		opts = Options{Level: "debug", Format: FormatConsole, Output: "stderr"}
	}
	l, err := Build(opts)
	if err != nil {
		l = Nop()
	}
	global.CompareAndSwap(nil, l)
	return global.Load()
}

// SetGlobal replaces the process logger.
func SetGlobal(l *Logger) {
	global.Store(l)
}
