package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
)

// Validate checks the whole configuration and returns the first problem as
// a classified validation error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ValidationError("configuration is nil").Build()
	}
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validateBuild,
		v.validateModules,
		v.validateBridge,
		v.validateTransport,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (v *configurationValidator) validateBuild() error {
	if len(v.config.Build.Command) == 0 {
		return errors.ValidationError("build.command must not be empty").Build()
	}
	return nil
}

func (v *configurationValidator) validateModules() error {
	if len(v.config.Modules) == 0 {
		return errors.ValidationError("at least one module must be configured").Build()
	}
	_, _, err := v.config.Registrations()
	return err
}

func (v *configurationValidator) validateBridge() error {
	if err := validateDuration("bridge.drain_timeout", v.config.Bridge.DrainTimeout); err != nil {
		return err
	}
	return validateDuration("bridge.heartbeat_interval", v.config.Bridge.HeartbeatInterval)
}

func (v *configurationValidator) validateTransport() error {
	t := v.config.Transport
	if _, err := NormalizeTransportMode(string(t.Mode)); err != nil {
		return errors.ValidationError("transport.mode: " + err.Error()).Build()
	}
	if _, err := NormalizeRetryBackoff(string(t.Retry.Backoff)); err != nil {
		return errors.ValidationError("transport.retry.backoff: " + err.Error()).Build()
	}
	if t.Retry.MaxRetries < 0 {
		return errors.ValidationError("transport.retry.max_retries must not be negative").Build()
	}
	for field, value := range map[string]string{
		"transport.retry.initial_delay":  t.Retry.InitialDelay,
		"transport.retry.max_delay":      t.Retry.MaxDelay,
		"transport.nats.publish_timeout": t.NATS.PublishTimeout,
	} {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}
	if t.Mode == TransportNATS && t.NATS.URL == "" {
		return errors.ValidationError("transport.nats.url is required in nats mode").Build()
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("%s: invalid duration %q", field, value)).
			WithCause(err).
			Build()
	}
	if d < 0 {
		return errors.ValidationError(fmt.Sprintf("%s must not be negative", field)).Build()
	}
	return nil
}
