package log

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return WithLogger(context.Background(), zap.New(core)), logs
}

func TestFieldsAccumulate(t *testing.T) {
	ctx, logs := observed()

	ctx = With(ctx, Target("home"), Service("cloudflare"))
	ctx = SWith(ctx, "domain", "home.example.com")
	ctx = Named(ctx, "daemon")
	S(ctx).Infow("record updated")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "daemon" {
		t.Errorf("logger name = %q", e.LoggerName)
	}
	fields := e.ContextMap()
	for k, want := range map[string]string{"target": "home", "service": "cloudflare", "domain": "home.example.com"} {
		if fields[k] != want {
			t.Errorf("%s = %v, want %s", k, fields[k], want)
		}
	}
}

func TestLoggerThroughWrappedContext(t *testing.T) {
	ctx, logs := observed()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	L(ctx).Info("plain")
	S(ctx).Info("sugared")
	if logs.Len() != 2 {
		t.Errorf("got %d entries through a wrapped ctx, want 2", logs.Len())
	}
}

func TestAdapters(t *testing.T) {
	ctx, logs := observed()

	CronLogger(ctx).Info("wake", "now", 1)
	CronLogger(ctx).Error(errors.New("boom"), "panic", "job", "tick")
	PoolLogger(ctx).Printf("worker %d exited", 3)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("cron info logged at %s, want debug", entries[0].Level)
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["error"] != "boom" {
		t.Errorf("cron error = %+v", entries[1])
	}
	if entries[2].Message != "worker 3 exited" || entries[2].Level != zapcore.WarnLevel {
		t.Errorf("pool entry = %+v", entries[2])
	}
}
