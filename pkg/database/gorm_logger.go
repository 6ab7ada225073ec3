package database

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// gormLogger routes gorm's query log through logrus. Queries are logged at
// debug, slow queries at warn, failures other than record-not-found at error.
type gormLogger struct {
	entry *logrus.Entry
	slow  time.Duration
}

func newGormLogger(log *logrus.Logger, slow time.Duration) gormlogger.Interface {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &gormLogger{entry: log.WithField("component", "database"), slow: slow}
}

// LogMode is a no-op; the logrus level decides.
func (l *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.entry.WithContext(ctx).Infof(msg, data...)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.entry.WithContext(ctx).Warnf(msg, data...)
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.entry.WithContext(ctx).Errorf(msg, data...)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := l.entry.WithContext(ctx).WithFields(logrus.Fields{
		"elapsed": elapsed,
		"rows":    rows,
		"sql":     sql,
	})

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		entry.WithError(err).Error("Database query failed")
	case elapsed > l.slow:
		entry.Warn("Slow database query")
	default:
		entry.Debug("Database query executed")
	}
}
