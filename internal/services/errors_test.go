package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"siren/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "play", "ffplay", "exited", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"play", "ffplay", "exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestRetryableAndClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		class     string
	}{
		{"nil", nil, false, "ok"},
		{"validation", services.Wrap(services.ErrValidation, "metadata", "decode", "bad", nil), false, "validation"},
		{"not found", fmt.Errorf("lookup: %w", services.ErrNotFound), false, "not_found"},
		{"transient", services.Wrap(services.ErrTransient, "download", "get", "reset", errors.New("io")), true, "transient"},
		{"timeout", services.Wrap(services.ErrTimeout, "download", "get", "slow", nil), true, "timeout"},
		{"deadline", fmt.Errorf("api: %w", context.DeadlineExceeded), true, "timeout"},
		{"canceled", fmt.Errorf("api: %w", context.Canceled), false, "canceled"},
		{"tool", services.Wrap(services.ErrExternalTool, "play", "ffplay", "", nil), false, "external_tool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Retryable(tt.err); got != tt.retryable {
				t.Fatalf("Retryable = %v, want %v", got, tt.retryable)
			}
			if got := services.Classify(tt.err); got != tt.class {
				t.Fatalf("Classify = %q, want %q", got, tt.class)
			}
		})
	}
}
