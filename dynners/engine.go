package dynners

import (
	"context"
	"dynners/common"
	"dynners/config"
	"dynners/ddns"
	"dynners/log"
	"dynners/sources"
	"dynners/state"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine reconciles published DNS records with the configured sources,
// one tick at a time. Ticks must not overlap; Daemon takes care of that.
type Engine struct {
	registry *Registry
	targets  []*target
	store    *state.Store
	pool     *Pool
}

// New builds the engine for conf. Any source or provider that cannot be
// built is reported as a *config.Error.
func New(ctx context.Context, conf *config.Config) (_ *Engine, err error) {
	ctx = log.SWith(ctx, log.Stage("init"))

	pool, err := NewPool(ctx, conf.General.Concurrency)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			pool.Release()
		}
	}()

	registry := NewRegistry()
	for _, name := range conf.IPNames() {
		ip := conf.IP[name]
		ctx := log.SWith(ctx, "name", name, "method", ip.Method)

		source, err := sources.New(ctx, ip)
		if err != nil {
			log.S(ctx).Errorw("failed creating source", zap.Error(err))
			return nil, &config.Error{Key: "ip." + name, Err: err}
		}

		registry.Add(name, source)
	}

	var targets []*target
	for _, name := range conf.DDNSNames() {
		d := conf.DDNS[name]
		ctx := log.With(ctx, log.Target(name), log.Service(d.Service))

		provider, err := ddns.New(ctx, d.Service, d.Options)
		if err != nil {
			log.S(ctx).Errorw("failed creating provider", zap.Error(err))
			return nil, &config.Error{Key: "ddns." + name, Err: err}
		}

		var timeout time.Duration
		if d.Timeout != nil {
			timeout = time.Duration(*d.Timeout)
		}

		t, err := newTarget(name, d.Service, provider, d.IP, d.Domains, timeout,
			state.Fingerprint(d.Service, d.Domains, d.Options), registry)
		if err != nil {
			log.S(ctx).Errorw("failed creating target", zap.Error(err))
			return nil, &config.Error{Key: "ddns." + name + ".ip", Err: err}
		}

		targets = append(targets, t)
	}

	path := ""
	if conf.General.PersistentState != nil {
		path = *conf.General.PersistentState
	}

	log.S(ctx).Infow("engine ready", "sources", len(registry.entries), "targets", len(targets))
	return &Engine{
		registry: registry,
		targets:  targets,
		store:    state.Open(ctx, path),
		pool:     pool,
	}, nil
}

type pending struct {
	target  *target
	update  ddns.Update
	record  state.Record
	changed []common.Family
}

// plan selects the addresses of every target and keeps those that differ
// from what was last applied.
func (e *Engine) plan(ctx context.Context) []pending {
	var todo []pending
	for _, t := range e.targets {
		ctx := log.With(ctx, log.Stage("reconcile"), log.Target(t.name))

		u := t.selection(ctx, e.registry)
		if len(u.Families()) == 0 {
			log.S(ctx).Warnw("no usable address, skip target")
			continue
		}

		rec, ok := e.store.Get(t.name, t.fingerprint)
		if !ok {
			log.S(ctx).Debugw("no record applied yet")
		}

		changed := changes(u, rec)
		if len(changed) == 0 {
			log.S(ctx).Debugw("IP didn't change, skip update")
			continue
		}

		todo = append(todo, pending{target: t, update: u, record: rec, changed: changed})
	}
	return todo
}

// Tick refreshes every source and pushes changed addresses to their
// providers. Failures stay isolated to their source or target; the
// returned error joins the *UpdateError of every failed target and a
// failure to save state, for reporting only.
func (e *Engine) Tick(ctx context.Context) error {
	elapsed := log.Elapsed("elapsed")

	failedSources := e.registry.Refresh(ctx, e.pool)
	todo := e.plan(ctx)

	results := e.pool.Run(ctx, len(todo), func(i int) error {
		p := todo[i]
		ctx := log.With(ctx, log.Stage("update"), log.Target(p.target.name), log.Service(p.target.service))

		var cancel context.CancelFunc = func() {}
		if p.target.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, p.target.timeout)
		}
		defer cancel()

		return p.target.provider.Update(ctx, p.update)
	})

	// State is only touched here, on the tick goroutine.
	var errs []error
	for i, p := range todo {
		ctx := log.With(ctx, log.Target(p.target.name), log.Service(p.target.service))

		if err := results[i]; err != nil {
			uerr := &UpdateError{Target: p.target.name, Service: p.target.service, Err: err}
			log.S(ctx).Warnw("update failed, will retry next tick", zap.Error(uerr))
			errs = append(errs, uerr)
			continue
		}

		e.store.Put(p.target.name, p.target.applied(p.record, p.update, p.changed))
		log.S(ctx).Infow("target updated",
			"families", p.changed,
			log.AddrKey("ipv4", p.update.IPv4),
			log.AddrKey("ipv6", p.update.IPv6))
	}

	if err := e.store.Save(ctx); err != nil {
		errs = append(errs, fmt.Errorf("state not saved: %w", err))
	}

	log.S(ctx).Infow("tick done",
		"sources_failed", failedSources,
		"updates", len(todo),
		"updates_failed", len(todo)-countNil(results),
		elapsed)

	return errors.Join(errs...)
}

// Close releases the workers. The engine must not tick afterwards.
func (e *Engine) Close() {
	e.pool.Release()
}

func countNil(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}
