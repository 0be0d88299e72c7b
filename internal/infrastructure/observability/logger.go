package observability

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	PrincipalKey contextKey = "principal"
	TraceIDKey   contextKey = "trace_id"
	// TaskIDKey carries the uuid of the reconciliation task being executed.
	TaskIDKey contextKey = "task_id"
	// SessionRefKey carries "<kind>:<id>" of the session being scheduled or reconciled.
	SessionRefKey contextKey = "session_ref"
)

type Logger struct {
	zap *zap.Logger
}

func NewLogger(level string, encoding string) (*Logger, error) {
	cfg := zap.NewProductionConfig()

	if encoding == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(zapLevel)

	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{zap: logger}, nil
}

// NewLoggerFromCore wraps an existing zap core, e.g. an observer core in tests.
func NewLoggerFromCore(core zapcore.Core) *Logger {
	return &Logger{zap: zap.New(core, zap.AddCallerSkip(1))}
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(l.contextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	fields = append(fields, zap.Stack("stack"))
	l.zap.Error(msg, append(l.contextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(l.contextFields(ctx), fields...)...)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(l.contextFields(ctx), fields...)...)
}

func (l *Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, append(l.contextFields(ctx), fields...)...)
}

func (l *Logger) WithContext(ctx context.Context, keysAndValues ...interface{}) context.Context {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(contextKey); ok {
			ctx = context.WithValue(ctx, key, keysAndValues[i+1])
		}
	}
	return ctx
}

func (l *Logger) contextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	if ctx == nil {
		return fields
	}

	for _, key := range []contextKey{RequestIDKey, PrincipalKey, TraceIDKey, TaskIDKey, SessionRefKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}

	pc, file, line, ok := runtime.Caller(2)
	if ok {
		fields = append(fields,
			zap.String("caller", runtime.FuncForPC(pc).Name()),
			zap.String("file", file),
			zap.Int("line", line),
		)
	}

	return fields
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) Field(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}
