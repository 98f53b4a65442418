// Package log keeps a zap logger inside context.Context. Code receives its
// logger with the ctx it runs under, so a tick, a target or a provider call
// only has to add its own fields once. The cron scheduler and the ants
// worker pool log through the same ctx logger via adapters.go.
package log

import (
	"context"

	"go.uber.org/zap"
)

type logCtx struct {
	context.Context

	logger  *zap.Logger
	sLogger *zap.SugaredLogger
}

type logType struct{}

func (c *logCtx) Value(k any) any {
	if _, ok := k.(logType); ok {
		return c.logger
	}

	return c.Context.Value(k)
}

func derive(parent context.Context, logger *zap.Logger, sLogger *zap.SugaredLogger) context.Context {
	if sLogger == nil {
		sLogger = logger.Sugar()
	}
	if logger == nil {
		logger = sLogger.Desugar()
	}

	return &logCtx{Context: parent, logger: logger, sLogger: sLogger}
}

func WithLogger(parent context.Context, logger *zap.Logger) context.Context {
	return derive(parent, logger, nil)
}

// L returns the logger of ctx, falling back to zap's global one.
func L(ctx context.Context) *zap.Logger {
	if l, ok := ctx.(*logCtx); ok {
		return l.logger
	}

	if l, _ := ctx.Value(logType{}).(*zap.Logger); l != nil {
		return l
	}

	return zap.L()
}

// S returns sugared version of L.
func S(ctx context.Context) *zap.SugaredLogger {
	if s, ok := ctx.(*logCtx); ok {
		return s.sLogger
	}

	return L(ctx).Sugar()
}

func With(ctx context.Context, tags ...zap.Field) context.Context {
	return derive(ctx, L(ctx).With(tags...), nil)
}

func SWith(ctx context.Context, tags ...interface{}) context.Context {
	return derive(ctx, nil, S(ctx).With(tags...))
}

// Named attaches a sub-logger name, e.g. "daemon".
func Named(ctx context.Context, name string) context.Context {
	return derive(ctx, L(ctx).Named(name), nil)
}
