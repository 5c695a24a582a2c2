package service

import (
	"time"

	"go.uber.org/zap"
)

// AuditLogger records who did what on the socket. Entries go to the
// structured log; shipping them elsewhere is a sink concern, not ours.
type AuditLogger struct {
	logger *zap.Logger
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit")}
}

// EventReceived marks an inbound socket event before dispatch.
func (a *AuditLogger) EventReceived(userKey, userName, eventName string) {
	a.logger.Info("event received",
		zap.String("user_key", userKey),
		zap.String("user_name", userName),
		zap.String("event", eventName),
	)
}

// EventHandled marks the outcome of a dispatched event.
func (a *AuditLogger) EventHandled(userKey, eventName string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("user_key", userKey),
		zap.String("event", eventName),
		zap.Duration("duration", duration),
		zap.Bool("success", err == nil),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		a.logger.Warn("event failed", fields...)
		return
	}
	a.logger.Info("event handled", fields...)
}

// Connection marks a connect or disconnect.
func (a *AuditLogger) Connection(userKey, userName, action string) {
	a.logger.Info("connection",
		zap.String("user_key", userKey),
		zap.String("user_name", userName),
		zap.String("action", action),
	)
}
