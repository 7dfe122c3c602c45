// Package config loads the buildbridge configuration file.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/retry"
)

// CurrentVersion is the configuration schema version.
const CurrentVersion = "1.0"

// Config is the complete configuration.
type Config struct {
	Version   string          `yaml:"version" toml:"version"`
	Bridge    BridgeConfig    `yaml:"bridge" toml:"bridge"`
	Build     BuildConfig     `yaml:"build" toml:"build"`
	Modules   []ModuleConfig  `yaml:"modules" toml:"modules"`
	Reporters ReportersConfig `yaml:"reporters" toml:"reporters"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// BridgeConfig holds the event bridge flags.
type BridgeConfig struct {
	ForceSuccess      bool   `yaml:"force_success" toml:"force_success"`
	Debug             bool   `yaml:"debug" toml:"debug"`
	Profile           bool   `yaml:"profile" toml:"profile"`
	DrainTimeout      string `yaml:"drain_timeout" toml:"drain_timeout"`
	HeartbeatInterval string `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
}

// BuildConfig describes how the build tool is launched.
type BuildConfig struct {
	Command     []string `yaml:"command" toml:"command"`
	Goals       []string `yaml:"goals" toml:"goals"`
	Workdir     string   `yaml:"workdir" toml:"workdir"`
	ToolVersion string   `yaml:"tool_version" toml:"tool_version"`
}

// ModuleConfig registers one module and the reporters observing it.
type ModuleConfig struct {
	ID        string   `yaml:"id" toml:"id"` // group:artifact:version
	Name      string   `yaml:"name,omitempty" toml:"name,omitempty"`
	Reporters []string `yaml:"reporters,omitempty" toml:"reporters,omitempty"`
}

// ReportersConfig configures the built-in reporters.
type ReportersConfig struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
}

// TransportConfig selects where module build state is kept.
type TransportConfig struct {
	Mode  TransportMode `yaml:"mode" toml:"mode"`
	NATS  NATSConfig    `yaml:"nats" toml:"nats"`
	Retry RetryConfig   `yaml:"retry" toml:"retry"`
}

// NATSConfig configures the networked proxy and the controller.
type NATSConfig struct {
	URL            string `yaml:"url" toml:"url"`
	Stream         string `yaml:"stream" toml:"stream"`
	Subject        string `yaml:"subject" toml:"subject"`
	Durable        string `yaml:"durable" toml:"durable"`
	KVBucket       string `yaml:"kv_bucket" toml:"kv_bucket"`
	PublishTimeout string `yaml:"publish_timeout" toml:"publish_timeout"`
}

// RetryConfig configures retries of proxy calls.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff" toml:"backoff"`
	InitialDelay string           `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     string           `yaml:"max_delay" toml:"max_delay"`
	MaxRetries   int              `yaml:"max_retries" toml:"max_retries"`
}

// StoreConfig locates the event store.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
}

// LoggingConfig configures the default logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level" toml:"level"`
	Format LogFormat `yaml:"format" toml:"format"`
}

// Load reads, normalizes, defaults and validates the file at path. Files
// ending in .toml are TOML, everything else YAML. ${VAR} references are
// expanded after .env files are loaded.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("path", path).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	}

	cfg, err := decode(path, []byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version: %q (expected %s)", cfg.Version, CurrentVersion)).
			WithContext("path", path).
			Build()
	}

	for _, w := range Normalize(cfg).Warnings {
		slog.Warn("Config normalization", slog.String("warning", w))
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func decode(path string, data []byte) (*Config, error) {
	var cfg Config
	var err error
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config file").
			WithContext("path", path).
			Build()
	}
	return &cfg, nil
}

// Init writes an example configuration to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).
			Build()
	}

	example := Example()
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(example)
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(example)
		data = buf.Bytes()
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", path).
			Build()
	}
	return nil
}

// Example returns the configuration Init writes.
func Example() *Config {
	cfg := &Config{
		Version: CurrentVersion,
		Build: BuildConfig{
			Command: []string{"mvn", "-B"},
			Goals:   []string{"clean", "install"},
			Workdir: ".",
		},
		Modules: []ModuleConfig{
			{ID: "org.example:parent:1.0-SNAPSHOT", Name: "Example Parent", Reporters: []string{"log"}},
			{ID: "org.example:core:1.0-SNAPSHOT", Name: "Example Core", Reporters: []string{"log", "summary"}},
		},
		Transport: TransportConfig{Mode: TransportStore},
	}
	ApplyDefaults(cfg)
	return cfg
}

// Registrations parses the module list into names and reporter names, in
// file order.
func (c *Config) Registrations() ([]module.Name, map[module.Name]ModuleConfig, error) {
	names := make([]module.Name, 0, len(c.Modules))
	byName := make(map[module.Name]ModuleConfig, len(c.Modules))
	for i, m := range c.Modules {
		name, err := module.ParseName(m.ID)
		if err != nil {
			return nil, nil, errors.ValidationError(fmt.Sprintf("modules[%d]: invalid id %q", i, m.ID)).
				WithCause(err).
				Build()
		}
		if _, dup := byName[name]; dup {
			return nil, nil, errors.ValidationError(fmt.Sprintf("modules[%d]: duplicate module %s", i, name)).Build()
		}
		names = append(names, name)
		byName[name] = m
	}
	return names, byName, nil
}

// DrainTimeoutDuration returns the parsed drain timeout.
func (b BridgeConfig) DrainTimeoutDuration() time.Duration {
	return parseDuration(b.DrainTimeout)
}

// HeartbeatDuration returns the parsed heartbeat interval.
func (b BridgeConfig) HeartbeatDuration() time.Duration {
	return parseDuration(b.HeartbeatInterval)
}

// PublishTimeoutDuration returns the parsed publish timeout.
func (n NATSConfig) PublishTimeoutDuration() time.Duration {
	return parseDuration(n.PublishTimeout)
}

// Policy converts the retry settings.
func (r RetryConfig) Policy() retry.Policy {
	return retry.NewPolicy(retry.BackoffMode(r.Backoff), parseDuration(r.InitialDelay), parseDuration(r.MaxDelay), r.MaxRetries)
}

// parseDuration returns zero for empty or invalid input; Validate reports
// invalid values before this is used.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d
}
