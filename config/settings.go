// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig
	Guard     GuardConfig
	History   HistoryConfig
	Search    SearchConfig
	Sanitizer SanitizerConfig
	Summary   SummaryConfig
}

// LLMConfig holds LLM provider and gateway configuration.
type LLMConfig struct {
	Provider        string
	Model           string
	FallbackModel   string
	MaxTokens       uint32
	Temperature     float64
	Concurrency     int64
	MaxAttempts     int
	BackoffBase     time.Duration
	PrimaryTimeout  time.Duration
	FallbackTimeout time.Duration
	// USD per 1k tokens
	PromptTokenCost     float64
	CompletionTokenCost float64
}

// GuardConfig holds admission control configuration.
type GuardConfig struct {
	RateLimitWindow    time.Duration
	RateLimitMaxEvents int
	DedupTTL           time.Duration
	DedupMaxEntries    int
}

// HistoryConfig holds conversation history configuration.
type HistoryConfig struct {
	MaxItems int
	// DBPath selects the durable SQLite store; empty keeps history
	// in memory only.
	DBPath             string
	MaxTranscriptChars int
	MaxPromptChars     int
}

// SearchConfig holds web search configuration.
type SearchConfig struct {
	CacheTTL      time.Duration
	CacheMaxItems int
	Timeout       time.Duration
	Aggressive    bool
}

// SanitizerConfig holds disclaimer removal configuration.
type SanitizerConfig struct {
	EnableEnglish bool
	ExtraPatterns []string
}

// SummaryConfig holds history summarization configuration.
type SummaryConfig struct {
	Model          string
	Timeout        time.Duration
	TriggerTokens  int
	MaxSourceChars int
	TargetRatio    float64
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.0-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified provider, loading values from
// environment variables. Returns an error if the provider is unknown or
// environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	llm, err := loadLLMConfig(provider, model)
	if err != nil {
		return Settings{}, err
	}
	guardCfg, err := loadGuardConfig()
	if err != nil {
		return Settings{}, err
	}
	historyCfg, err := loadHistoryConfig()
	if err != nil {
		return Settings{}, err
	}
	searchCfg, err := loadSearchConfig()
	if err != nil {
		return Settings{}, err
	}
	summaryCfg, err := loadSummaryConfig(model)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM:     llm,
		Guard:   guardCfg,
		History: historyCfg,
		Search:  searchCfg,
		Sanitizer: SanitizerConfig{
			EnableEnglish: getEnvBool("DISCLAIMER_ENABLE_ENGLISH", true),
			ExtraPatterns: splitPatterns(os.Getenv("DISCLAIMER_EXTRA_PATTERNS")),
		},
		Summary: summaryCfg,
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func loadLLMConfig(provider, model string) (LLMConfig, error) {
	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return LLMConfig{}, err
	}
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return LLMConfig{}, err
	}
	concurrency, err := getEnvInt("LLM_CONCURRENCY", 3)
	if err != nil {
		return LLMConfig{}, err
	}
	maxAttempts, err := getEnvInt("LLM_MAX_ATTEMPTS", 3)
	if err != nil {
		return LLMConfig{}, err
	}
	backoffMs, err := getEnvInt("LLM_BACKOFF_BASE_MS", 800)
	if err != nil {
		return LLMConfig{}, err
	}
	primaryTimeout, err := getEnvSeconds("LLM_PRIMARY_TIMEOUT_SEC", 20)
	if err != nil {
		return LLMConfig{}, err
	}
	fallbackTimeout, err := getEnvSeconds("LLM_FALLBACK_TIMEOUT_SEC", 30)
	if err != nil {
		return LLMConfig{}, err
	}
	promptCost, err := getEnvFloat64("LLM_PROMPT_TOKEN_COST", 0)
	if err != nil {
		return LLMConfig{}, err
	}
	completionCost, err := getEnvFloat64("LLM_COMPLETION_TOKEN_COST", 0)
	if err != nil {
		return LLMConfig{}, err
	}

	return LLMConfig{
		Provider:            provider,
		Model:               model,
		FallbackModel:       os.Getenv("LLM_FALLBACK_MODEL"),
		MaxTokens:           maxTokens,
		Temperature:         temperature,
		Concurrency:         int64(concurrency),
		MaxAttempts:         maxAttempts,
		BackoffBase:         time.Duration(backoffMs) * time.Millisecond,
		PrimaryTimeout:      primaryTimeout,
		FallbackTimeout:     fallbackTimeout,
		PromptTokenCost:     promptCost,
		CompletionTokenCost: completionCost,
	}, nil
}

func loadGuardConfig() (GuardConfig, error) {
	window, err := getEnvSeconds("RATE_LIMIT_WINDOW_SEC", 30)
	if err != nil {
		return GuardConfig{}, err
	}
	maxEvents, err := getEnvInt("RATE_LIMIT_MAX_EVENTS", 5)
	if err != nil {
		return GuardConfig{}, err
	}
	dedupTTL, err := getEnvSeconds("DEDUP_TTL_SEC", 60)
	if err != nil {
		return GuardConfig{}, err
	}
	dedupMax, err := getEnvInt("DEDUP_MAX_ENTRIES", 5000)
	if err != nil {
		return GuardConfig{}, err
	}
	return GuardConfig{
		RateLimitWindow:    window,
		RateLimitMaxEvents: maxEvents,
		DedupTTL:           dedupTTL,
		DedupMaxEntries:    dedupMax,
	}, nil
}

func loadHistoryConfig() (HistoryConfig, error) {
	maxItems, err := getEnvInt("HISTORY_MAX_ITEMS", 30)
	if err != nil {
		return HistoryConfig{}, err
	}
	transcriptChars, err := getEnvInt("HISTORY_MAX_TRANSCRIPT_CHARS", 2000)
	if err != nil {
		return HistoryConfig{}, err
	}
	promptChars, err := getEnvInt("PROMPT_MAX_HISTORY_CHARS", 4000)
	if err != nil {
		return HistoryConfig{}, err
	}
	return HistoryConfig{
		MaxItems:           maxItems,
		DBPath:             os.Getenv("HISTORY_DB_PATH"),
		MaxTranscriptChars: transcriptChars,
		MaxPromptChars:     promptChars,
	}, nil
}

func loadSearchConfig() (SearchConfig, error) {
	ttl, err := getEnvSeconds("WEBSEARCH_CACHE_TTL", 180)
	if err != nil {
		return SearchConfig{}, err
	}
	maxItems, err := getEnvInt("WEBSEARCH_CACHE_MAX", 128)
	if err != nil {
		return SearchConfig{}, err
	}
	timeout, err := getEnvSeconds("WEBSEARCH_TIMEOUT_SEC", 10)
	if err != nil {
		return SearchConfig{}, err
	}
	return SearchConfig{
		CacheTTL:      ttl,
		CacheMaxItems: maxItems,
		Timeout:       timeout,
		Aggressive:    getEnvBool("SEARCH_AGGRESSIVE_MODE", false),
	}, nil
}

func loadSummaryConfig(model string) (SummaryConfig, error) {
	trigger, err := getEnvInt("SUMMARY_TRIGGER_PROMPT_TOKENS", 2800)
	if err != nil {
		return SummaryConfig{}, err
	}
	maxSource, err := getEnvInt("SUMMARY_MAX_SOURCE_CHARS", 8000)
	if err != nil {
		return SummaryConfig{}, err
	}
	ratio, err := getEnvFloat64("SUMMARY_TARGET_REDUCTION_RATIO", 0.5)
	if err != nil {
		return SummaryConfig{}, err
	}
	timeout, err := getEnvSeconds("SUMMARY_TIMEOUT_SEC", 15)
	if err != nil {
		return SummaryConfig{}, err
	}
	summaryModel := os.Getenv("SUMMARY_MODEL")
	if summaryModel == "" {
		summaryModel = model
	}
	return SummaryConfig{
		Model:          summaryModel,
		Timeout:        timeout,
		TriggerTokens:  trigger,
		MaxSourceChars: maxSource,
		TargetRatio:    ratio,
	}, nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// splitPatterns parses a comma-separated pattern list, dropping blanks.
func splitPatterns(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvSeconds(key string, defaultSec int) (time.Duration, error) {
	sec, err := getEnvInt(key, defaultSec)
	if err != nil {
		return 0, err
	}
	return time.Duration(sec) * time.Second, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
