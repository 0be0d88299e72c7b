package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AuditLogger struct {
	logger      *Logger
	file        *os.File
	mu          sync.Mutex
	isDedicated bool
}

// SecurityEvent records rejected or accepted calls on protected routes.
type SecurityEvent struct {
	Type      string
	Action    string
	Principal string
	Resource  string
	Success   bool
	IPAddress string
}

// ReconciliationEvent records the outcome of one reconciliation run.
type ReconciliationEvent struct {
	Trigger     string // inline, queue, sweep, operator
	SessionKind string
	SessionID   uint64
	Principal   string
	Roster      int
	Created     int
	Updated     int
	Unchanged   int
	Present     int
	Late        int
	Absent      int
	Errors      int
	Err         error
}

func NewAuditLogger(logger *Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// NewDedicatedAuditLogger creates an audit logger that writes to a separate file
func NewDedicatedAuditLogger(filePath, format string) (*AuditLogger, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if format == "console" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		encoderConfig.MessageKey = "message"
		encoderConfig.StacktraceKey = "stack"
		encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), zapcore.InfoLevel)

	return &AuditLogger{
		logger:      NewLoggerFromCore(core),
		file:        file,
		isDedicated: true,
	}, nil
}

// Close releases any resources held by the audit logger
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

func (a *AuditLogger) LogSecurityEvent(ctx context.Context, event SecurityEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info(ctx, "AUDIT",
		zap.String("event_type", event.Type),
		zap.String("principal", event.Principal),
		zap.String("action", event.Action),
		zap.String("resource", event.Resource),
		zap.Bool("success", event.Success),
		zap.String("ip_address", event.IPAddress),
		zap.Time("event_time", time.Now().UTC()),
		zap.String("audit_version", "1.0"),
	)
}

func (a *AuditLogger) LogReconciliation(ctx context.Context, event ReconciliationEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fields := []zap.Field{
		zap.String("event_type", "reconciliation"),
		zap.String("trigger", event.Trigger),
		zap.String("session_kind", event.SessionKind),
		zap.Uint64("session_id", event.SessionID),
		zap.Int("roster", event.Roster),
		zap.Int("created", event.Created),
		zap.Int("updated", event.Updated),
		zap.Int("unchanged", event.Unchanged),
		zap.Int("present", event.Present),
		zap.Int("late", event.Late),
		zap.Int("absent", event.Absent),
		zap.Int("errors", event.Errors),
		zap.Bool("success", event.Err == nil),
		zap.Time("event_time", time.Now().UTC()),
		zap.String("audit_version", "1.0"),
	}
	if event.Principal != "" {
		fields = append(fields, zap.String("principal", event.Principal))
	}
	if event.Err != nil {
		fields = append(fields, zap.String("error", event.Err.Error()))
	}

	a.logger.Info(ctx, "AUDIT", fields...)
}
