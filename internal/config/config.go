// Package config loads asyncsvcd configuration.
//
// Values are layered with koanf, later layers winning:
//
//  1. built-in defaults
//  2. a YAML file (the -config flag, or ASYNCSVC_CONFIG)
//  3. ASYNCSVC_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/axondata/go-asyncsvc/internal/logging"
)

// PathEnvVar names the config file when no path is given explicitly
const PathEnvVar = "ASYNCSVC_CONFIG"

// EnvPrefix is the prefix of environment overrides
const EnvPrefix = "ASYNCSVC_"

// Runtime names accepted by Config.Runtime
const (
	RuntimeGoroutine = "goroutine"
	RuntimeStopper   = "stopper"
	RuntimeLoop      = "loop"
)

// Config is the full asyncsvcd configuration
type Config struct {
	Log       logging.Config `koanf:"log"`
	Runtime   string         `koanf:"runtime"`
	StopGrace time.Duration  `koanf:"stop_grace"`
	Workers   int            `koanf:"workers"`
	Tick      time.Duration  `koanf:"tick"`
	Metrics   MetricsConfig  `koanf:"metrics"`
	Report    ReportConfig   `koanf:"report"`
	Watch     WatchConfig    `koanf:"watch"`

	// path is the config file that was loaded, if any
	path string
}

// MetricsConfig controls the /metrics endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `koanf:"listen"`
}

// ReportConfig controls the periodic stats report. An empty Path disables it.
type ReportConfig struct {
	Path     string        `koanf:"path"`
	Interval time.Duration `koanf:"interval"`
}

// WatchConfig controls restarting on config file changes
type WatchConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Path returns the config file the Config was loaded from, or ""
func (c *Config) Path() string {
	return c.path
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log:       logging.DefaultConfig(),
		Runtime:   RuntimeGoroutine,
		StopGrace: 5 * time.Second,
		Workers:   4,
		Tick:      time.Second,
		Metrics:   MetricsConfig{Listen: ""},
		Report:    ReportConfig{Interval: 10 * time.Second},
		Watch:     WatchConfig{Enabled: true},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $ASYNCSVC_CONFIG when path is empty) and the environment, then validates it
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKeys maps environment variable names (prefix stripped, lower-cased)
// to koanf paths. Unknown variables are ignored.
var envKeys = map[string]string{
	"log_level":       "log.level",
	"log_format":      "log.format",
	"runtime":         "runtime",
	"stop_grace":      "stop_grace",
	"workers":         "workers",
	"tick":            "tick",
	"metrics_listen":  "metrics.listen",
	"report_path":     "report.path",
	"report_interval": "report.interval",
	"watch_enabled":   "watch.enabled",
}

// envKey transforms ASYNCSVC_REPORT_PATH into report.path
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envKeys[key]
}

// Validate rejects configurations asyncsvcd cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Runtime {
	case RuntimeGoroutine, RuntimeStopper, RuntimeLoop:
	default:
		errs = append(errs, fmt.Errorf("runtime: unknown runtime %q (want %s, %s or %s)",
			c.Runtime, RuntimeGoroutine, RuntimeStopper, RuntimeLoop))
	}
	if c.StopGrace <= 0 {
		errs = append(errs, fmt.Errorf("stop_grace: must be positive, got %s", c.StopGrace))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers: must not be negative, got %d", c.Workers))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick: must be positive, got %s", c.Tick))
	}
	if c.Report.Path != "" && c.Report.Interval <= 0 {
		errs = append(errs, fmt.Errorf("report.interval: must be positive, got %s", c.Report.Interval))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}
