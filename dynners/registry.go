package dynners

import (
	"context"
	"dynners/common"
	"dynners/log"
	"dynners/sources"
	"errors"
	"net/netip"
	"sync/atomic"

	"go.uber.org/zap"
)

type entry struct {
	name   string
	source sources.Interface

	// Written by the refresh task of this entry only.
	addr   netip.Addr
	failed bool
	err    error
}

// Registry holds the latest lookup result of every named source. Entries
// start flagged: a source is unusable until it resolved once.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*entry{}}
}

// Add registers source under name. Names are unique.
func (r *Registry) Add(name string, source sources.Interface) {
	e := &entry{name: name, source: source, failed: true}
	r.entries = append(r.entries, e)
	r.byName[name] = e
}

// Family returns the declared family of the source called name.
func (r *Registry) Family(name string) (common.Family, bool) {
	e, ok := r.byName[name]
	if !ok {
		return 0, false
	}
	return e.source.Family(), true
}

// Usable returns the cached address of name if its last lookup succeeded.
func (r *Registry) Usable(name string) (netip.Addr, bool) {
	e, ok := r.byName[name]
	if !ok || e.failed {
		return netip.Addr{}, false
	}
	return e.addr, true
}

// Refresh looks every source up exactly once, concurrently, and returns
// once all of them finished or timed out. It returns the number of failed
// sources.
func (r *Registry) Refresh(ctx context.Context, pool *Pool) int {
	ctx = log.With(ctx, log.Stage("resolve"))

	var failed atomic.Int32
	errs := pool.Run(ctx, len(r.entries), func(i int) error {
		e := r.entries[i]
		ctx := log.SWith(ctx, log.Source(e.name), "method", e.source.Typename())

		addr, err := e.source.Lookup(ctx)
		if err == nil {
			var ok bool
			if addr, ok = e.source.Family().Normalize(addr); !ok {
				err = sources.ErrMismatchedFamily
			}
		}

		if err != nil {
			var rerr *sources.ResolutionError
			if !errors.As(err, &rerr) {
				err = &sources.ResolutionError{Source: e.name, Method: e.source.Typename(), Err: err}
			}
			e.addr, e.failed, e.err = netip.Addr{}, true, err
			failed.Add(1)
			log.S(ctx).Warnw("resolve failed", zap.Error(err))
			return err
		}

		if e.failed || e.addr != addr {
			log.S(ctx).Infow("resolved ip", log.Addr(addr), log.AddrKey("previous", e.addr))
		} else {
			log.S(ctx).Debugw("resolved ip", log.Addr(addr))
		}
		e.addr, e.failed, e.err = addr, false, nil
		return nil
	})

	// A panicking lookup never reached the bookkeeping above.
	for i, err := range errs {
		e := r.entries[i]
		if err != nil && !e.failed {
			e.addr, e.failed, e.err = netip.Addr{}, true, err
			failed.Add(1)
		}
	}

	return int(failed.Load())
}
