package config

import (
	"dynners/common"
	"dynners/netmask"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultShell           = "/bin/sh"
	DefaultPersistentState = "/var/lib/dynners/state.json"
	DefaultTimeout         = common.Duration(30 * time.Second)
	DefaultConcurrency     = 8
)

// Version is reported in the default user agent.
var Version = "dev"

type Config struct {
	General General             `mapstructure:"general"`
	Log     Log                 `mapstructure:"log"`
	IP      map[string]IPSource `mapstructure:"ip"`
	DDNS    map[string]DDNS     `mapstructure:"ddns"`
}

type General struct {
	// UpdateRate is the tick interval in seconds. Zero runs a single tick.
	UpdateRate      *uint32         `mapstructure:"update_rate"`
	Shell           string          `mapstructure:"shell"`
	UserAgent       string          `mapstructure:"user_agent"`
	PersistentState *string         `mapstructure:"persistent_state"`
	Timeout         common.Duration `mapstructure:"timeout"`
	Concurrency     int             `mapstructure:"concurrency"`
}

type Log struct {
	Level     *zapcore.Level `mapstructure:"level"`
	Encoding  *string        `mapstructure:"encoding"`
	InfoPath  *[]string      `mapstructure:"info_path"`
	ErrorPath *[]string      `mapstructure:"error_path"`
}

// IPSource is one `ip.<name>` entry. Method specific keys stay in Config
// and are decoded by the source implementation.
type IPSource struct {
	Name    string           `mapstructure:"-"`
	Version common.Family    `mapstructure:"version"`
	Method  string           `mapstructure:"method"`
	Timeout *common.Duration `mapstructure:"timeout"`
	Config  map[string]any   `mapstructure:",remain"`

	// Filled from [general].
	Shell string `mapstructure:"-"`
}

type IPSourceExecConfig struct {
	Command string `mapstructure:"command"`
}

type IPSourceInterfaceConfig struct {
	Iface   string              `mapstructure:"iface"`
	Matches *netmask.Pattern    `mapstructure:"matches"`
	Select  common.IPSelectMode `mapstructure:"select"`
	Skip    []common.IPSkipFlag `mapstructure:"skip"`
}

type IPSourceHTTPConfig struct {
	URL   string  `mapstructure:"url"`
	Regex *string `mapstructure:"regex"`
}

// DDNS is one `ddns.<name>` entry. Provider specific keys stay in Options.
type DDNS struct {
	Name    string            `mapstructure:"-"`
	Service string            `mapstructure:"service"`
	IP      common.StringList `mapstructure:"ip"`
	Domains common.StringList `mapstructure:"domains"`
	Timeout *common.Duration  `mapstructure:"timeout"`
	Options map[string]any    `mapstructure:",remain"`
}
