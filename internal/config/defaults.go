package config

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// ApplyDefaults fills unset fields in every domain.
func ApplyDefaults(cfg *Config) {
	appliers := []DefaultApplier{
		&bridgeDefaultApplier{},
		&buildDefaultApplier{},
		&transportDefaultApplier{},
		&storageDefaultApplier{},
		&loggingDefaultApplier{},
	}
	for _, a := range appliers {
		a.ApplyDefaults(cfg)
	}
}

type bridgeDefaultApplier struct{}

func (bridgeDefaultApplier) Domain() string { return "bridge" }

func (bridgeDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Bridge.DrainTimeout == "" {
		cfg.Bridge.DrainTimeout = "5m"
	}
	if cfg.Bridge.HeartbeatInterval == "" {
		cfg.Bridge.HeartbeatInterval = "30s"
	}
}

type buildDefaultApplier struct{}

func (buildDefaultApplier) Domain() string { return "build" }

func (buildDefaultApplier) ApplyDefaults(cfg *Config) {
	if len(cfg.Build.Command) == 0 {
		cfg.Build.Command = []string{"mvn", "-B"}
	}
	if cfg.Build.Workdir == "" {
		cfg.Build.Workdir = "."
	}
}

type transportDefaultApplier struct{}

func (transportDefaultApplier) Domain() string { return "transport" }

func (transportDefaultApplier) ApplyDefaults(cfg *Config) {
	t := &cfg.Transport
	if t.Mode == "" {
		t.Mode = TransportStore
	}
	if t.NATS.URL == "" {
		t.NATS.URL = "nats://127.0.0.1:4222"
	}
	if t.NATS.Stream == "" {
		t.NATS.Stream = "BUILDBRIDGE"
	}
	if t.NATS.Subject == "" {
		t.NATS.Subject = "buildbridge.mutations"
	}
	if t.NATS.Durable == "" {
		t.NATS.Durable = "buildbridge-controller"
	}
	if t.NATS.KVBucket == "" {
		t.NATS.KVBucket = "buildbridge-modules"
	}
	if t.NATS.PublishTimeout == "" {
		t.NATS.PublishTimeout = "10s"
	}
	if t.Retry.Backoff == "" {
		t.Retry.Backoff = RetryBackoffLinear
	}
	if t.Retry.InitialDelay == "" {
		t.Retry.InitialDelay = "200ms"
	}
	if t.Retry.MaxDelay == "" {
		t.Retry.MaxDelay = "5s"
	}
	if t.Retry.MaxRetries == 0 {
		t.Retry.MaxRetries = 3
	}
}

type storageDefaultApplier struct{}

func (storageDefaultApplier) Domain() string { return "storage" }

func (storageDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = ".buildbridge/events.db"
	}
	if cfg.Reporters.OutputDir == "" {
		cfg.Reporters.OutputDir = ".buildbridge/reports"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9464"
	}
}

type loggingDefaultApplier struct{}

func (loggingDefaultApplier) Domain() string { return "logging" }

func (loggingDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}
