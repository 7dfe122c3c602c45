package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments made while normalizing.
type NormalizationResult struct {
	Warnings []string
}

// Normalize canonicalizes enum-like fields and trims string lists. Unknown
// enum values are left in place for Validate to report.
func Normalize(cfg *Config) *NormalizationResult {
	res := &NormalizationResult{}
	if cfg == nil {
		return res
	}

	if mode, err := NormalizeTransportMode(string(cfg.Transport.Mode)); err == nil {
		if cfg.Transport.Mode != "" && mode != cfg.Transport.Mode {
			res.Warnings = append(res.Warnings, fmt.Sprintf("transport.mode %q normalized to %q", cfg.Transport.Mode, mode))
		}
		cfg.Transport.Mode = mode
	}
	if b, err := NormalizeRetryBackoff(string(cfg.Transport.Retry.Backoff)); err == nil {
		cfg.Transport.Retry.Backoff = b
	}

	level := NormalizeLogLevel(string(cfg.Logging.Level))
	if cfg.Logging.Level != "" && !strings.EqualFold(string(cfg.Logging.Level), string(level)) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("logging.level %q normalized to %q", cfg.Logging.Level, level))
	}
	cfg.Logging.Level = level
	format := NormalizeLogFormat(string(cfg.Logging.Format))
	if cfg.Logging.Format != "" && !strings.EqualFold(string(cfg.Logging.Format), string(format)) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("logging.format %q normalized to %q", cfg.Logging.Format, format))
	}
	cfg.Logging.Format = format

	cfg.Build.Command = trimAll(cfg.Build.Command)
	cfg.Build.Goals = trimAll(cfg.Build.Goals)
	for i := range cfg.Modules {
		cfg.Modules[i].ID = strings.TrimSpace(cfg.Modules[i].ID)
		reps := trimAll(cfg.Modules[i].Reporters)
		for j := range reps {
			reps[j] = strings.ToLower(reps[j])
		}
		cfg.Modules[i].Reporters = reps
	}
	return res
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
