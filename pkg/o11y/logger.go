// Package o11y provides the structured logging, metrics, and tracing used
// across every other VoxLoop package. It is the single place that decides
// which observability library backs these concerns, so the rest of the
// codebase only ever imports o11y.
package o11y

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with context-aware, call-scoped helpers.
// Every call-site log line is expected to carry call_id and campaign_id so
// operational errors can be correlated back to a single attempt (§7).
type Logger struct {
	inner *zap.SugaredLogger
}

// LogOption configures a Logger built by NewLogger.
type LogOption func(*loggerConfig)

type loggerConfig struct {
	level zapcore.Level
	json  bool
}

// WithLevel sets the minimum log level. Unrecognised values fall back to info.
func WithLevel(level string) LogOption {
	return func(c *loggerConfig) {
		switch level {
		case "debug":
			c.level = zapcore.DebugLevel
		case "info":
			c.level = zapcore.InfoLevel
		case "warn":
			c.level = zapcore.WarnLevel
		case "error":
			c.level = zapcore.ErrorLevel
		}
	}
}

// WithJSON switches the encoder to JSON, for production log shipping.
func WithJSON() LogOption {
	return func(c *loggerConfig) { c.json = true }
}

// NewLogger builds a Logger. Without options it logs at info level using the
// console encoder, which is what operators want on a terminal.
func NewLogger(opts ...LogOption) *Logger {
	cfg := &loggerConfig{level: zapcore.InfoLevel}
	for _, opt := range opts {
		opt(cfg)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.json {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), cfg.level)
	return &Logger{inner: zap.New(core).Sugar()}
}

// NewNop returns a Logger that discards everything; useful in unit tests.
func NewNop() *Logger {
	return &Logger{inner: zap.NewNop().Sugar()}
}

// Zap returns the underlying *zap.SugaredLogger for interop.
func (l *Logger) Zap() *zap.SugaredLogger { return l.inner }

// Info logs at INFO with structured key/value pairs.
func (l *Logger) Info(_ context.Context, msg string, kv ...any) { l.inner.Infow(msg, kv...) }

// Warn logs at WARN with structured key/value pairs.
func (l *Logger) Warn(_ context.Context, msg string, kv ...any) { l.inner.Warnw(msg, kv...) }

// Error logs at ERROR with structured key/value pairs.
func (l *Logger) Error(_ context.Context, msg string, kv ...any) { l.inner.Errorw(msg, kv...) }

// Debug logs at DEBUG with structured key/value pairs.
func (l *Logger) Debug(_ context.Context, msg string, kv ...any) { l.inner.Debugw(msg, kv...) }

// With returns a child Logger carrying the given fields on every subsequent
// line; used to bind call_id/campaign_id once per call (§7).
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}

// Sync flushes any buffered log entries. Call on shutdown.
func (l *Logger) Sync() error { return l.inner.Sync() }
