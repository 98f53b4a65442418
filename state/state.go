// Package state keeps the last addresses successfully published for every
// DDNS target, so a restart does not push unchanged addresses again.
package state

import (
	"context"
	"dynners/common"
	"dynners/log"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Version of the on-disk format. Files written by a newer version are
// ignored rather than misread.
const Version = 1

// Record is the last applied address set of one target. A zero address
// means nothing was applied for that family.
type Record struct {
	IPv4        netip.Addr `json:"ipv4"`
	IPv6        netip.Addr `json:"ipv6"`
	Fingerprint string     `json:"fingerprint"`
	Updated     time.Time  `json:"updated"`
}

func (r Record) Addr(f common.Family) netip.Addr {
	if f == common.IPv6 {
		return r.IPv6
	}
	return r.IPv4
}

func (r *Record) SetAddr(f common.Family, addr netip.Addr) {
	if f == common.IPv6 {
		r.IPv6 = addr
	} else {
		r.IPv4 = addr
	}
}

type stateFile struct {
	Version int               `json:"version"`
	Updated time.Time         `json:"updated"`
	Targets map[string]Record `json:"targets"`
}

// Store is the in-memory copy of the state file. It is not safe for
// concurrent use: the engine only touches it from the tick goroutine.
type Store struct {
	path    string
	targets map[string]Record
	dirty   bool

	now func() time.Time
}

// Open loads the state file at path. An empty path keeps state in memory
// only. A missing, unreadable or malformed file is logged and yields an
// empty store: losing state only costs one redundant update per target.
func Open(ctx context.Context, path string) *Store {
	ctx = log.SWith(ctx, "path", path)

	s := &Store{path: path, targets: map[string]Record{}, now: time.Now}
	if path == "" {
		log.S(ctx).Infow("persistent state disabled")
		return s
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.S(ctx).Infow("no state file, starting fresh")
		return s
	} else if err != nil {
		log.S(ctx).Warnw("failed read state file, starting fresh", zap.Error(err))
		return s
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.S(ctx).Warnw("corrupt state file, starting fresh", zap.Error(err))
		return s
	}

	if f.Version > Version {
		log.S(ctx).Warnw("state file written by a newer version, starting fresh",
			"version", f.Version, "supported", Version)
		return s
	}

	for name, r := range f.Targets {
		s.targets[name] = r
	}

	log.S(ctx).Infow("state loaded", "targets", len(s.targets), "updated", f.Updated)
	return s
}

// Get returns the record of target name. A record written for a different
// fingerprint belongs to an older configuration and is reported missing.
func (s *Store) Get(name, fingerprint string) (Record, bool) {
	r, ok := s.targets[name]
	if !ok || r.Fingerprint != fingerprint {
		return Record{}, false
	}
	return r, true
}

// Put replaces the record of target name.
func (s *Store) Put(name string, r Record) {
	r.Updated = s.now().UTC()
	s.targets[name] = r
	s.dirty = true
}

// Dirty reports whether the store has changes not yet saved.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Save writes the store if it changed since the last save. The file is
// replaced atomically, so a crash leaves either the old or the new state.
func (s *Store) Save(ctx context.Context) error {
	if !s.dirty || s.path == "" {
		s.dirty = false
		return nil
	}

	ctx = log.SWith(ctx, "path", s.path)

	data, err := json.MarshalIndent(stateFile{
		Version: Version,
		Updated: s.now().UTC(),
		Targets: s.targets,
	}, "", "  ")
	if err != nil {
		log.S(ctx).Errorw("failed encode state", zap.Error(err), log.Internal)
		return fmt.Errorf("failed encode state: %w", err)
	}

	if err := writeFile(s.path, data); err != nil {
		log.S(ctx).Warnw("failed save state", zap.Error(err))
		return fmt.Errorf("failed save state: %w", err)
	}

	s.dirty = false
	log.S(ctx).Debugw("state saved", "targets", len(s.targets))
	return nil
}

func writeFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}

// Fingerprint identifies the published configuration of a target. It
// changes whenever the service, the domains or any option changes.
func Fingerprint(service string, domains []string, options map[string]any) string {
	data, err := json.Marshal(struct {
		Service string         `json:"service"`
		Domains []string       `json:"domains"`
		Options map[string]any `json:"options"`
	}{service, domains, options})
	if err != nil {
		// options come from a decoded config document and always encode
		data = []byte(fmt.Sprint(service, domains, options))
	}

	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}
