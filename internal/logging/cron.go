package logging

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronLogger adapts zap to cron.Logger. Info messages from the scheduler
// are chatty, so they go to debug.
type CronLogger struct {
	logger *zap.SugaredLogger
}

var _ cron.Logger = CronLogger{}

// NewCronLogger wraps logger for use with cron.WithLogger.
func NewCronLogger(logger *zap.Logger) CronLogger {
	return CronLogger{logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Info implements cron.Logger.
func (l CronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

// Error implements cron.Logger.
func (l CronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
