package config

import (
	"bytes"
	"dynners/common"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SearchPaths are tried in order when no config path is given.
var SearchPaths = []string{"config.toml", "/etc/dynners/config.toml"}

var (
	ErrNotFound = errors.New("no config file found")
	ErrRequired = errors.New("required key missing")
	ErrUnknown  = errors.New("unknown reference")
)

// Error is a configuration problem. It is only ever fatal at startup.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "bad config: " + e.Err.Error()
	}
	return fmt.Sprintf("bad config at %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorAt(key string, err error) error {
	return &Error{Key: key, Err: err}
}

// Find returns path if set, otherwise the first existing SearchPaths entry.
func Find(path string) (string, error) {
	if path != "" {
		return path, nil
	}

	for _, p := range SearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w, tried %s", ErrNotFound, strings.Join(SearchPaths, ", "))
}

// Load reads, decodes, defaults and validates the config at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errorAt("", err)
	}

	return Parse(filepath.Ext(path), data)
}

// Parse decodes data in the format named by ext (".toml", ".yaml", ".yml" or
// ".json").
func Parse(ext string, data []byte) (Config, error) {
	raw := map[string]any{}

	var err error
	switch strings.ToLower(ext) {
	case ".toml", "":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return Config{}, errorAt("", err)
	}

	var conf Config
	if err := common.StrictDecodeMap(raw, &conf); err != nil {
		return Config{}, errorAt("", err)
	}

	if err := conf.normalize(); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// normalize fills defaults and checks everything that does not depend on a
// particular method or service.
func (c *Config) normalize() error {
	g := &c.General
	if g.UpdateRate == nil {
		return errorAt("general.update_rate", ErrRequired)
	}
	if g.Shell == "" {
		g.Shell = DefaultShell
	}
	if g.UserAgent == "" {
		g.UserAgent = "dynners/" + Version
	}
	if g.PersistentState == nil {
		p := DefaultPersistentState
		g.PersistentState = &p
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultTimeout
	}
	if g.Concurrency <= 0 {
		g.Concurrency = DefaultConcurrency
	}

	for name, ip := range c.IP {
		key := "ip." + name
		ip.Name = name
		ip.Shell = g.Shell
		if ip.Timeout == nil {
			t := g.Timeout
			ip.Timeout = &t
		}

		switch {
		case !ip.Version.Valid():
			return errorAt(key+".version", fmt.Errorf("expect 4 or 6, got %d", int(ip.Version)))
		case ip.Method == "":
			return errorAt(key+".method", ErrRequired)
		}

		c.IP[name] = ip
	}

	for name, d := range c.DDNS {
		key := "ddns." + name
		d.Name = name
		if d.Timeout == nil {
			t := g.Timeout
			d.Timeout = &t
		}

		switch {
		case d.Service == "":
			return errorAt(key+".service", ErrRequired)
		case len(d.IP) == 0:
			return errorAt(key+".ip", ErrRequired)
		case len(d.Domains) == 0:
			return errorAt(key+".domains", ErrRequired)
		}

		for _, ref := range d.IP {
			if _, ok := c.IP[ref]; !ok {
				return errorAt(key+".ip", fmt.Errorf("%w: no ip.%s", ErrUnknown, ref))
			}
		}

		c.DDNS[name] = d
	}

	return nil
}

// IPNames returns the configured source names in a stable order.
func (c *Config) IPNames() []string {
	names := make([]string, 0, len(c.IP))
	for name := range c.IP {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DDNSNames returns the configured target names in a stable order.
func (c *Config) DDNSNames() []string {
	names := make([]string, 0, len(c.DDNS))
	for name := range c.DDNS {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
