package dynners

import (
	"context"
	"dynners/common"
	"dynners/ddns"
	"dynners/log"
	"dynners/state"
	"fmt"
	"time"
)

// target binds one provider to its domains and its prioritized sources.
type target struct {
	name     string
	service  string
	provider ddns.Interface
	domains  []string
	timeout  time.Duration

	// sources in priority order, and the families they provide.
	sources  []string
	families []common.Family

	fingerprint string
}

func newTarget(name, service string, provider ddns.Interface, sourceNames, domains []string, timeout time.Duration, fingerprint string, r *Registry) (*target, error) {
	t := &target{
		name:        name,
		service:     service,
		provider:    provider,
		domains:     domains,
		timeout:     timeout,
		sources:     sourceNames,
		fingerprint: fingerprint,
	}

	required := map[common.Family]bool{}
	for _, s := range sourceNames {
		f, ok := r.Family(s)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", s)
		}
		required[f] = true
	}
	for _, f := range common.Families {
		if required[f] {
			t.families = append(t.families, f)
		}
	}

	return t, nil
}

// selection walks the sources in list order and keeps, per required
// family, the first one whose last lookup succeeded. A family without a
// usable source stays zero and is left out of the update.
func (t *target) selection(ctx context.Context, r *Registry) ddns.Update {
	u := ddns.Update{Domains: t.domains}

	for _, f := range t.families {
		found := false
		for _, name := range t.sources {
			if fam, _ := r.Family(name); fam != f {
				continue
			}
			addr, ok := r.Usable(name)
			if !ok {
				continue
			}

			if f == common.IPv6 {
				u.IPv6 = addr
			} else {
				u.IPv4 = addr
			}
			log.S(ctx).Debugw("selected source", "family", f, log.Source(name), log.Addr(addr))
			found = true
			break
		}

		if !found {
			log.S(ctx).Warnw("no usable source, family left out", "family", f, "sources", t.sources)
		}
	}

	return u
}

// changes lists the families of u whose address differs from rec.
func changes(u ddns.Update, rec state.Record) []common.Family {
	var fs []common.Family
	for _, f := range u.Families() {
		if u.Addr(f) != rec.Addr(f) {
			fs = append(fs, f)
		}
	}
	return fs
}

// applied returns rec with the changed families of u written in.
func (t *target) applied(rec state.Record, u ddns.Update, changed []common.Family) state.Record {
	rec.Fingerprint = t.fingerprint
	for _, f := range changed {
		rec.SetAddr(f, u.Addr(f))
	}
	return rec
}
