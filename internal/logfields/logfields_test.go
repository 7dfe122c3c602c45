package logfields

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b-1", BuildID("b-1")},
		{"Module", KeyModule, "g:a:1", Module("g:a:1")},
		{"Step", KeyStep, "compile", Step("compile")},
		{"Hook", KeyHook, "preBuild", Hook("preBuild")},
		{"Reporter", KeyReporter, "summary", Reporter("summary")},
		{"Event", KeyEvent, "projectStarted", Event("projectStarted")},
		{"Result", KeyResult, "SUCCESS", Result("SUCCESS")},
		{"Op", KeyOp, "start", Op("start")},
		{"Token", KeyToken, "t1", Token("t1")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Subject", KeySubject, "builds.start", Subject("builds.start")},
		{"Stack", KeyStack, "frame", Stack("frame")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if v := Pending(3); v.Key != KeyPending || v.Value.Int64() != 3 {
		t.Fatalf("Pending mismatch: %v", v)
	}
	if v := Elapsed(1500 * time.Microsecond); v.Key != KeyDurationMS || v.Value.Float64() != 1.5 {
		t.Fatalf("Elapsed mismatch: %v", v)
	}
	if v := Forked(true); v.Key != KeyForked || !v.Value.Bool() {
		t.Fatalf("Forked mismatch: %v", v)
	}
}

// TestErrorHelper ensures Error() and Cause() handle nil and wrapped errors predictably.
func TestErrorHelper(t *testing.T) {
	if attr := Error(nil); attr.Key != KeyError || attr.Value.String() != "" {
		t.Fatalf("unexpected nil error attr: %v", attr)
	}
	root := errors.New("disk full")
	wrapped := fmt.Errorf("write report: %w", root)
	if attr := Error(wrapped); attr.Value.String() != "write report: disk full" {
		t.Fatalf("unexpected error value: %s", attr.Value.String())
	}
	if attr := Cause(wrapped); attr.Key != KeyCause || attr.Value.String() != "disk full" {
		t.Fatalf("unexpected cause attr: %v", attr)
	}
	if attr := Cause(root); attr.Value.String() != "" {
		t.Fatalf("expected empty cause, got %s", attr.Value.String())
	}
}
