// Interactive chat runner for exercising the pipeline end to end.
//
// Information Hiding:
// - Component wiring from Settings
// - Terminal input/output formatting

package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hikawa/chatrelay/config"
	"github.com/hikawa/chatrelay/guard"
	"github.com/hikawa/chatrelay/history"
	"github.com/hikawa/chatrelay/llm"
	"github.com/hikawa/chatrelay/metrics"
	"github.com/hikawa/chatrelay/pipeline"
	"github.com/hikawa/chatrelay/prompt"
	"github.com/hikawa/chatrelay/sanitize"
	"github.com/hikawa/chatrelay/search"
)

// Window bounds mirror the platform defaults: a plain channel carries a
// short window, a thread a longer one.
const channelWindowSize = 10

const cliChannelID = "cli"

// Options holds CLI execution options.
type Options struct {
	Provider    string
	DBPath      string
	MetricsAddr string
	Verbose     bool
}

// Chat starts an interactive session against the full pipeline.
func Chat(ctx context.Context, opts Options) error {
	if opts.Provider == "" {
		return fmt.Errorf("--provider is required")
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if opts.MetricsAddr != "" {
		go serveMetrics(opts.MetricsAddr, registry, logger)
	}

	provider, err := createProvider(opts.Provider, settings)
	if err != nil {
		return err
	}

	store, closeStore, err := createHistoryStore(opts.DBPath, settings)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	pipe := assemblePipeline(settings, provider, store, logger, m)

	fmt.Printf("chatrelay: chatting via %s (%s). Type 'exit' to quit, '/clear' to reset history.\n\n",
		settings.LLM.Provider, settings.LLM.Model)

	return runLoop(ctx, pipe, store, settings)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

func createProvider(providerName string, settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}
	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

func createHistoryStore(dbPath string, settings config.Settings) (history.Store, func() error, error) {
	if dbPath == "" {
		dbPath = settings.History.DBPath
	}
	if dbPath == "" {
		return history.NewMemoryStore(settings.History.MaxItems), nil, nil
	}
	store, err := history.OpenSQLite(dbPath, settings.History.MaxItems)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return store, store.Close, nil
}

func assemblePipeline(settings config.Settings, provider llm.Provider, store history.Store, logger *zap.Logger, m *metrics.Metrics) *pipeline.Pipeline {
	engine := search.NewEngine(search.DefaultEngineConfig(settings.Search.Aggressive), logger)
	cache := search.NewCache(settings.Search.CacheTTL, settings.Search.CacheMaxItems, logger, m)
	chain := search.NewChainProvider(logger,
		search.NewDuckDuckGoProvider(settings.Search.Timeout),
		search.NewGoogleScrapeProvider(settings.Search.Timeout))
	searchCtx := search.NewContextBuilder(chain, cache, logger, m)

	gateway := llm.NewGateway(provider, llm.GatewayConfig{
		Model:               settings.LLM.Model,
		FallbackModel:       settings.LLM.FallbackModel,
		SummaryModel:        settings.Summary.Model,
		Concurrency:         settings.LLM.Concurrency,
		MaxAttempts:         settings.LLM.MaxAttempts,
		BackoffBase:         settings.LLM.BackoffBase,
		PrimaryTimeout:      settings.LLM.PrimaryTimeout,
		FallbackTimeout:     settings.LLM.FallbackTimeout,
		SummaryTimeout:      settings.Summary.Timeout,
		PromptTokenCost:     settings.LLM.PromptTokenCost,
		CompletionTokenCost: settings.LLM.CompletionTokenCost,
	}, logger, m)

	prompts := prompt.NewBuilder(settings.History.MaxPromptChars, logger)
	sanitizer := sanitize.New(sanitize.Options{
		EnableEnglish: settings.Sanitizer.EnableEnglish,
		ExtraPatterns: settings.Sanitizer.ExtraPatterns,
	}, logger)
	dedup := guard.NewDeduplicator(settings.Guard.DedupTTL, settings.Guard.DedupMaxEntries)
	limiter := guard.NewRateLimiter(settings.Guard.RateLimitWindow, settings.Guard.RateLimitMaxEvents)

	cfg := pipeline.Config{
		Model:                 settings.LLM.Model,
		FallbackModel:         settings.LLM.FallbackModel,
		SummaryTriggerTokens:  settings.Summary.TriggerTokens,
		SummaryMaxSourceChars: settings.Summary.MaxSourceChars,
		SummaryTargetRatio:    settings.Summary.TargetRatio,
	}
	return pipeline.New(cfg, engine, searchCtx, prompts, gateway, sanitizer, dedup, limiter, logger)
}

func runLoop(ctx context.Context, pipe *pipeline.Pipeline, store history.Store, settings config.Settings) error {
	var window []llm.ChatMessage

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if input == "/clear" {
			if err := store.Clear(ctx, cliChannelID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to clear history: %v\n", err)
				continue
			}
			window = nil
			fmt.Println("History cleared.")
			continue
		}

		if !pipe.Admit(uuid.NewString(), "cli-user") {
			fmt.Println("(dropped: rate limited)")
			continue
		}

		current := history.Entry{
			UserID:      "cli-user",
			DisplayName: "you",
			Content:     input,
			Source:      "cli",
			Timestamp:   time.Now(),
		}
		entries, err := store.Entries(ctx, cliChannelID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read history: %v\n", err)
		}
		conversationContext := history.ConversationContext(entries, current, settings.History.MaxTranscriptChars)
		if err := store.Append(ctx, cliChannelID, current); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
		}

		window = appendBounded(window, llm.UserMessage(input))

		res := pipe.Respond(ctx, window, conversationContext)
		switch res.Status {
		case pipeline.StatusOK:
			if res.Reply == "" {
				fmt.Println("(empty response)")
				continue
			}
			for _, chunk := range pipeline.SplitReply(res.Reply) {
				fmt.Printf("\n%s\n", chunk)
			}
			fmt.Println()
			window = appendBounded(window, llm.AssistantMessage(res.Reply))
			reply := history.Entry{
				UserID:      "bot",
				DisplayName: "chatrelay",
				Content:     res.Reply,
				Source:      "assistant",
				Timestamp:   time.Now(),
			}
			if err := store.Append(ctx, cliChannelID, reply); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record reply: %v\n", err)
			}
		case pipeline.StatusTooLong:
			fmt.Println("Context limit reached. Use /clear to reset the conversation.")
		case pipeline.StatusInvalidRequest:
			fmt.Fprintf(os.Stderr, "Invalid request: %s\n", res.StatusText)
		default:
			fmt.Fprintf(os.Stderr, "Error: %s\n", res.StatusText)
		}
	}
	return scanner.Err()
}

// appendBounded keeps the window at the channel size, dropping the
// oldest messages.
func appendBounded(window []llm.ChatMessage, msg llm.ChatMessage) []llm.ChatMessage {
	window = append(window, msg)
	if len(window) > channelWindowSize {
		window = window[len(window)-channelWindowSize:]
	}
	return window
}
