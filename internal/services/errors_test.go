package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bd3d/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encode", "frimencode", "chunk 3 failed", base)
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
	for _, fragment := range []string{"encode", "frimencode", "chunk 3 failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, services.ExitOK},
		{"validation", services.Wrap(services.ErrValidation, "validate", "", "frames", nil), services.ExitValidation},
		{"config", services.Wrap(services.ErrConfiguration, "config", "", "bad", nil), services.ExitConfiguration},
		{"dependency", services.Wrap(services.ErrDependency, "check", "", "tsmuxer", nil), services.ExitDependency},
		{"cancelled", services.ErrCancelled, services.ExitCancelled},
		{"context", fmt.Errorf("encode: %w", context.Canceled), services.ExitCancelled},
		{"other", errors.New("io"), services.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
