// Package dtunconfig loads the process-level configuration described in
// SPEC_FULL.md §4.12: listen address, bootstrap endpoints, STUN server,
// query/register timeouts, K/α, and logging. Flags are defined with
// spf13/pflag, wired through a spf13/cobra command in cmd/dtund, with an
// optional YAML override file parsed by gopkg.in/yaml.v3 — the same
// pairing the teacher's own go.mod carries for its CLI surface.
package dtunconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a dtund process.
type Config struct {
	ListenAddr   string        `yaml:"listen_addr"`
	Bootstrap    []string      `yaml:"bootstrap"`
	StunServer   string        `yaml:"stun_server"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	RegisterTTL  time.Duration `yaml:"register_timeout"`
	RegisterEach time.Duration `yaml:"register_interval"`
	K            int           `yaml:"k"`
	Alpha        int           `yaml:"alpha"`
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
	LogLevel     string        `yaml:"log_level"`
	LogFile      string        `yaml:"log_file"`
}

// Default returns the spec's literal constants (K=6, α=3, query_timeout=
// 2s, register_timeout=10s) plus reasonable ambient defaults.
func Default() Config {
	return Config{
		ListenAddr:   ":0",
		QueryTimeout: 2 * time.Second,
		RegisterTTL:  10 * time.Second,
		RegisterEach: 5 * time.Minute,
		K:            6,
		Alpha:        3,
		RateLimit:    500,
		RateBurst:    1000,
		LogLevel:     "info",
	}
}

// BindFlags registers every Config field as a pflag flag against fs, so
// cmd/dtund's cobra command can parse the process's command line.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "UDP listen address (host:port)")
	fs.StringSliceVar(&c.Bootstrap, "bootstrap", c.Bootstrap, "bootstrap endpoints (host:port)")
	fs.StringVar(&c.StunServer, "stun-server", c.StunServer, "STUN server address for NAT detection")
	fs.DurationVar(&c.QueryTimeout, "query-timeout", c.QueryTimeout, "per-probe lookup timeout")
	fs.DurationVar(&c.RegisterTTL, "register-timeout", c.RegisterTTL, "registration debounce guard duration")
	fs.DurationVar(&c.RegisterEach, "register-interval", c.RegisterEach, "interval between registration cycles")
	fs.IntVar(&c.K, "k", c.K, "shortlist width / publication fan-out")
	fs.IntVar(&c.Alpha, "alpha", c.Alpha, "lookup concurrency width")
	fs.Float64Var(&c.RateLimit, "rate-limit", c.RateLimit, "inbound datagrams per second")
	fs.IntVar(&c.RateBurst, "rate-burst", c.RateBurst, "inbound datagram burst size")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "zap log level")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "rotating log file path (stderr only if empty)")
}

// LoadYAML overlays path's YAML content onto c. yaml.v3 decodes onto the
// existing struct, so only keys present in the file are overwritten and
// every key the file omits keeps c's prior value. An empty path is a
// no-op.
func (c *Config) LoadYAML(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("dtunconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("dtunconfig: parsing %s: %w", path, err)
	}
	return nil
}

// Validate reports a descriptive error for any out-of-range field.
func (c Config) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("dtunconfig: k must be positive")
	}
	if c.Alpha <= 0 {
		return fmt.Errorf("dtunconfig: alpha must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("dtunconfig: query-timeout must be positive")
	}
	if c.RegisterTTL <= 0 {
		return fmt.Errorf("dtunconfig: register-timeout must be positive")
	}
	return nil
}
