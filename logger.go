package submanager

import "go.uber.org/zap"

// Logger defines the logging interface required by the subscription manager.
// Implement this interface to integrate your logging system, or use
// NewZapLogger to adapt a zap logger.
type Logger interface {
	// Debugf logs debug-level messages with printf-style formatting.
	Debugf(format string, args ...interface{})

	// Infof logs info-level messages with printf-style formatting.
	Infof(format string, args ...interface{})

	// Warnf logs warning-level messages with printf-style formatting.
	Warnf(format string, args ...interface{})

	// Errorf logs error-level messages with printf-style formatting.
	Errorf(format string, args ...interface{})

	// Info logs info-level messages without formatting.
	Info(message string)
}

// NoopLogger is a no-operation logger implementation useful for testing
// or when logging is not desired. All methods are no-ops.
type NoopLogger struct{}

// Debugf implements Logger.Debugf as a no-op.
func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}

// Infof implements Logger.Infof as a no-op.
func (l *NoopLogger) Infof(_ string, _ ...interface{}) {}

// Warnf implements Logger.Warnf as a no-op.
func (l *NoopLogger) Warnf(_ string, _ ...interface{}) {}

// Errorf implements Logger.Errorf as a no-op.
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}

// Info implements Logger.Info as a no-op.
func (l *NoopLogger) Info(_ string) {}

// ZapLogger adapts a zap SugaredLogger to Logger.
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil logger falls back to zap.NewNop.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{logger: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debugf implements Logger.Debugf.
func (l *ZapLogger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }

// Infof implements Logger.Infof.
func (l *ZapLogger) Infof(format string, args ...interface{}) { l.logger.Infof(format, args...) }

// Warnf implements Logger.Warnf.
func (l *ZapLogger) Warnf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }

// Errorf implements Logger.Errorf.
func (l *ZapLogger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }

// Info implements Logger.Info.
func (l *ZapLogger) Info(message string) { l.logger.Info(message) }

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error { return l.logger.Sync() }
