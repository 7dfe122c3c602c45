package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/retry"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	t.Setenv("BB_GOAL", "verify")
	path := writeFile(t, "buildbridge.yaml", `
version: "1.0"
build:
  goals: [" clean ", "${BB_GOAL}"]
modules:
  - id: org.example:core:1.0
    reporters: [" LOG ", summary]
transport:
  mode: JetStream
logging:
  level: WARNING
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"clean", "verify"}, cfg.Build.Goals)
	assert.Equal(t, []string{"mvn", "-B"}, cfg.Build.Command)
	assert.Equal(t, TransportNATS, cfg.Transport.Mode)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, []string{"log", "summary"}, cfg.Modules[0].Reporters)
	assert.Equal(t, 5*time.Minute, cfg.Bridge.DrainTimeoutDuration())
	assert.Equal(t, 10*time.Second, cfg.Transport.NATS.PublishTimeoutDuration())
	assert.Equal(t, "BUILDBRIDGE", cfg.Transport.NATS.Stream)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "buildbridge.toml", `
version = "1.0"

[bridge]
force_success = true
drain_timeout = "30s"

[[modules]]
id = "org.example:api:2.0"
reporters = ["log"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Bridge.ForceSuccess)
	assert.Equal(t, 30*time.Second, cfg.Bridge.DrainTimeoutDuration())
	assert.Equal(t, TransportStore, cfg.Transport.Mode)
	require.Len(t, cfg.Modules, 1)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		cat  errors.ErrorCategory
	}{
		{"bad yaml", "version: [", errors.CategoryConfig},
		{"wrong version", `version: "0.1"
modules: [{id: "a:b:c"}]`, errors.CategoryConfig},
		{"no modules", `version: "1.0"`, errors.CategoryValidation},
		{"bad module id", `version: "1.0"
modules: [{id: nope}]`, errors.CategoryValidation},
		{"duplicate module", `version: "1.0"
modules: [{id: "a:b:c"}, {id: "a:b:c"}]`, errors.CategoryValidation},
		{"bad duration", `version: "1.0"
modules: [{id: "a:b:c"}]
bridge: {drain_timeout: soon}`, errors.CategoryValidation},
		{"bad mode", `version: "1.0"
modules: [{id: "a:b:c"}]
transport: {mode: carrier-pigeon}`, errors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, tt.cat), "got %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInitRoundTrip(t *testing.T) {
	for _, name := range []string{"buildbridge.yaml", "buildbridge.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Init(path, false))

			err := Init(path, false)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
			require.NoError(t, Init(path, true))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Len(t, cfg.Modules, 2)
			assert.Equal(t, TransportStore, cfg.Transport.Mode)
		})
	}
}

func TestRegistrationsKeepsFileOrder(t *testing.T) {
	cfg := Example()
	names, byName, err := cfg.Registrations()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, module.NewName("org.example", "parent", "1.0-SNAPSHOT"), names[0])
	assert.Equal(t, []string{"log", "summary"}, byName[names[1]].Reporters)
}

func TestRetryPolicy(t *testing.T) {
	cfg := Example()
	cfg.Transport.Retry = RetryConfig{Backoff: RetryBackoffFixed, InitialDelay: "50ms", MaxDelay: "1s", MaxRetries: 2}
	p := cfg.Transport.Retry.Policy()
	assert.Equal(t, retry.BackoffFixed, p.Mode)
	assert.Equal(t, 50*time.Millisecond, p.Initial)
	assert.Equal(t, 2, p.MaxRetries)
}

func TestNormalizeWarnsOnAliases(t *testing.T) {
	cfg := &Config{Transport: TransportConfig{Mode: "sqlite"}, Logging: LoggingConfig{Format: "JSON"}}
	res := Normalize(cfg)
	assert.Equal(t, TransportStore, cfg.Transport.Mode)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.Len(t, res.Warnings, 1)
}
