// Completion error taxonomy.
//
// Provider and network failures are converted into a closed set of
// error kinds at the gateway boundary. The retry/fallback loop and the
// pipeline pattern-match on the kind instead of provider exception types.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a terminal completion failure.
type ErrorKind int

const (
	// KindTimeout is a deadline exceeded after retry and fallback exhaustion.
	KindTimeout ErrorKind = iota
	// KindFinal is a non-timeout failure after retries are exhausted.
	KindFinal
	// KindPromptTooLarge is a provider rejection due to context window size.
	KindPromptTooLarge
	// KindInvalidRequest is any other provider-side request rejection.
	KindInvalidRequest
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindFinal:
		return "final"
	case KindPromptTooLarge:
		return "prompt_too_large"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// CompletionError is the terminal error surfaced by the gateway.
type CompletionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("completion %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("completion %s", e.Kind)
}

// Unwrap returns the underlying provider error.
func (e *CompletionError) Unwrap() error {
	return e.Err
}

// AsCompletionError extracts a CompletionError from an error chain.
func AsCompletionError(err error) (*CompletionError, bool) {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// retriable error message substrings, matched case-insensitively.
var retriableMarkers = []string{
	"rate limit",
	"timeout",
	"temporar",
	"overloaded",
	"503",
}

// isRetriable reports whether a provider error is worth retrying.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retriableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isPromptTooLarge detects the provider's context-window rejection.
func isPromptTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "context_length_exceeded")
}

// isInvalidRequest detects provider-side request rejections that are not
// context-window related.
func isInvalidRequest(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_request") ||
		strings.Contains(msg, "invalid request") ||
		strings.Contains(msg, "status code: 400")
}

// isTimeout detects deadline-style failures, including context expiry.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
