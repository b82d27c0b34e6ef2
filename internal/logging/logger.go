// Package logging wraps zap with context-aware correlation fields.
//
// Loggers carry the fields stored on the request context (request id,
// session id, trace/span ids) into every entry, so per-request log lines
// correlate without threading identifiers through call signatures.
package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with context-aware methods.
type Logger struct {
	zap *zap.Logger
}

// New creates a logger for the given level ("debug", "info", "warn",
// "error") and format ("json" or "console").
func New(level, format string) (*Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (must be json or console)", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl)
	return &Logger{zap: zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))}, nil
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

// With returns a child logger with the given constant fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Underlying returns the wrapped *zap.Logger for libraries that need one.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// Sync flushes buffered entries, ignoring the harmless stdout sync
// errors Linux reports.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	if err != nil && isStdoutSyncError(err) {
		return nil
	}
	return err
}

func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
