package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyModule     = "module"
	KeyStep       = "step"
	KeyHook       = "hook"
	KeyReporter   = "reporter"
	KeyEvent      = "event"
	KeyResult     = "result"
	KeyOp         = "op"
	KeyToken      = "token"
	KeyPending    = "pending"
	KeyForked     = "forked"
	KeyPath       = "path"
	KeySubject    = "subject"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyCause      = "cause"
	KeyStack      = "stack"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Module(name string) slog.Attr    { return slog.String(KeyModule, name) }
func Step(s string) slog.Attr         { return slog.String(KeyStep, s) }
func Hook(h string) slog.Attr         { return slog.String(KeyHook, h) }
func Reporter(name string) slog.Attr  { return slog.String(KeyReporter, name) }
func Event(kind string) slog.Attr     { return slog.String(KeyEvent, kind) }
func Result(r string) slog.Attr       { return slog.String(KeyResult, r) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func Token(tok string) slog.Attr      { return slog.String(KeyToken, tok) }
func Pending(n int) slog.Attr         { return slog.Int(KeyPending, n) }
func Forked(f bool) slog.Attr         { return slog.Bool(KeyForked, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Stack(s string) slog.Attr        { return slog.String(KeyStack, s) }

// Elapsed renders d as fractional milliseconds under the duration_ms key.
func Elapsed(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Cause renders the wrapped cause of err, or an empty string when there is none.
func Cause(err error) slog.Attr {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if c := u.Unwrap(); c != nil {
			return slog.String(KeyCause, c.Error())
		}
	}
	return slog.String(KeyCause, "")
}
