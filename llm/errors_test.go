package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", errors.New("Rate limit reached for gpt-4o"), true},
		{"timeout", errors.New("request timeout"), true},
		{"temporary", errors.New("temporarily unavailable"), true},
		{"overloaded", errors.New("engine is overloaded"), true},
		{"503", errors.New("status code: 503"), true},
		{"deadline", fmt.Errorf("chat completion failed: %w", context.DeadlineExceeded), true},
		{"auth", errors.New("incorrect api key"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetriable(tt.err); got != tt.want {
				t.Errorf("isRetriable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsPromptTooLarge(t *testing.T) {
	if !isPromptTooLarge(errors.New("This model's maximum context length is 128000 tokens")) {
		t.Error("expected context length rejection to classify as prompt-too-large")
	}
	if isPromptTooLarge(errors.New("invalid request")) {
		t.Error("generic invalid request must not classify as prompt-too-large")
	}
}

func TestCompletionErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	ce := &CompletionError{Kind: KindFinal, Message: "boom", Err: inner}
	wrapped := fmt.Errorf("pipeline: %w", ce)

	got, ok := AsCompletionError(wrapped)
	if !ok {
		t.Fatal("AsCompletionError failed through a wrap")
	}
	if got.Kind != KindFinal {
		t.Errorf("kind = %v, want %v", got.Kind, KindFinal)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("errors.Is must reach the provider error")
	}
}
