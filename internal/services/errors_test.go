package services_test

import (
	"errors"
	"strings"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcribe", "run", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcribe", "run", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "summarize", "request", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestFailureStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status catalog.JobStatus
	}{
		{"validation", services.Wrap(services.ErrValidation, "chain", "order", "invalid", nil), catalog.JobReview},
		{"configuration", services.Wrap(services.ErrConfiguration, "pricing", "lookup", "unknown model", nil), catalog.JobReview},
		{"not_found", services.Wrap(services.ErrNotFound, "registry", "resolve", "missing", nil), catalog.JobReview},
		{"circular", services.Wrap(services.ErrCircularDependency, "chain", "order", "cycle", nil), catalog.JobReview},
		{"transient", services.Wrap(services.ErrTransient, "ffmpeg", "convert", "io", errors.New("io")), catalog.JobFailed},
		{"external", services.Wrap(services.ErrExternalTool, "whisper", "run", "exit 1", nil), catalog.JobFailed},
		{"nil", nil, catalog.JobFailed},
	}
	for _, tc := range cases {
		if status := services.FailureStatus(tc.err); status != tc.status {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.status, status)
		}
	}
}
