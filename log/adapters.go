package log

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	ctx context.Context
}

// Info is only used by cron for scheduling chatter, keep it out of info logs.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	S(l.ctx).Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	S(l.ctx).With(zap.Error(err)).Errorw(msg, keysAndValues...)
}

// CronLogger exposes the logger of ctx to robfig/cron.
func CronLogger(ctx context.Context) cron.Logger {
	return cronLogger{ctx: ctx}
}

type poolLogger struct {
	ctx context.Context
}

func (l poolLogger) Printf(format string, args ...interface{}) {
	S(l.ctx).Warn(fmt.Sprintf(format, args...))
}

// PoolLogger exposes the logger of ctx to ants pools.
func PoolLogger(ctx context.Context) ants.Logger {
	return poolLogger{ctx: ctx}
}
