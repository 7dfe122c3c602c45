package config

import "git.home.luguber.info/inful/buildbridge/internal/foundation/normalization"

// TransportMode selects the build proxy implementation.
type TransportMode string

const (
	// TransportLocal keeps module state in memory only.
	TransportLocal TransportMode = "local"
	// TransportStore records module state in the local event store.
	TransportStore TransportMode = "store"
	// TransportNATS publishes module state to a remote controller.
	TransportNATS TransportMode = "nats"
)

var transportModeNormalizer = normalization.NewNormalizer(map[string]TransportMode{
	"local":     TransportLocal,
	"memory":    TransportLocal,
	"store":     TransportStore,
	"sqlite":    TransportStore,
	"nats":      TransportNATS,
	"jetstream": TransportNATS,
}, TransportStore)

// NormalizeTransportMode maps user input onto a mode; unknown input is an error.
func NormalizeTransportMode(raw string) (TransportMode, error) {
	return transportModeNormalizer.NormalizeWithError(raw)
}

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// NormalizeRetryBackoff maps user input onto a mode; unknown input is an error.
func NormalizeRetryBackoff(raw string) (RetryBackoffMode, error) {
	return retryBackoffNormalizer.NormalizeWithError(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}
