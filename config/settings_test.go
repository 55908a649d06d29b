package config

import (
	"os"
	"testing"
	"time"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewDefaults(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", settings.LLM.Concurrency)
	}
	if settings.LLM.PrimaryTimeout != 20*time.Second {
		t.Errorf("expected primary timeout 20s, got %v", settings.LLM.PrimaryTimeout)
	}
	if settings.Guard.RateLimitWindow != 30*time.Second {
		t.Errorf("expected rate limit window 30s, got %v", settings.Guard.RateLimitWindow)
	}
	if settings.Guard.RateLimitMaxEvents != 5 {
		t.Errorf("expected rate limit max events 5, got %d", settings.Guard.RateLimitMaxEvents)
	}
	if settings.History.MaxItems != 30 {
		t.Errorf("expected history max items 30, got %d", settings.History.MaxItems)
	}
	if settings.Search.CacheTTL != 180*time.Second {
		t.Errorf("expected cache TTL 180s, got %v", settings.Search.CacheTTL)
	}
	if settings.Search.CacheMaxItems != 128 {
		t.Errorf("expected cache max 128, got %d", settings.Search.CacheMaxItems)
	}
	if settings.Search.Aggressive {
		t.Error("expected aggressive search mode off by default")
	}
	if !settings.Sanitizer.EnableEnglish {
		t.Error("expected English disclaimer patterns on by default")
	}
	if settings.Summary.TriggerTokens != 2800 {
		t.Errorf("expected summary trigger 2800, got %d", settings.Summary.TriggerTokens)
	}
	if settings.Summary.Model != settings.LLM.Model {
		t.Errorf("expected summary model to default to primary model, got %q", settings.Summary.Model)
	}
}

func TestNewEnvOverrides(t *testing.T) {
	t.Setenv("LLM_FALLBACK_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_MAX_ATTEMPTS", "5")
	t.Setenv("WEBSEARCH_CACHE_TTL", "60")
	t.Setenv("SEARCH_AGGRESSIVE_MODE", "1")
	t.Setenv("DISCLAIMER_EXTRA_PATTERNS", "foo.*bar, baz ,")
	t.Setenv("SUMMARY_MODEL", "gpt-4o-mini")

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.FallbackModel != "gpt-4o-mini" {
		t.Errorf("expected fallback model override, got %q", settings.LLM.FallbackModel)
	}
	if settings.LLM.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", settings.LLM.MaxAttempts)
	}
	if settings.Search.CacheTTL != 60*time.Second {
		t.Errorf("expected cache TTL 60s, got %v", settings.Search.CacheTTL)
	}
	if !settings.Search.Aggressive {
		t.Error("expected aggressive search mode on")
	}
	if len(settings.Sanitizer.ExtraPatterns) != 2 {
		t.Fatalf("expected 2 extra patterns, got %v", settings.Sanitizer.ExtraPatterns)
	}
	if settings.Sanitizer.ExtraPatterns[1] != "baz" {
		t.Errorf("expected trimmed pattern 'baz', got %q", settings.Sanitizer.ExtraPatterns[1])
	}
	if settings.Summary.Model != "gpt-4o-mini" {
		t.Errorf("expected summary model override, got %q", settings.Summary.Model)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	tests := []struct {
		key string
		val string
	}{
		{"LLM_MAX_TOKENS", "not-a-number"},
		{"RATE_LIMIT_WINDOW_SEC", "abc"},
		{"SUMMARY_TARGET_REDUCTION_RATIO", "half"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := New("openai"); err == nil {
				t.Errorf("expected error for invalid %s", tt.key)
			}
		})
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) == 0 {
		t.Error("expected at least one supported provider")
	}
}
