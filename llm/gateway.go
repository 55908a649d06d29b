// Completion Gateway - resilient wrapper around provider calls.
//
// Information Hiding:
// - Semaphore concurrency control
// - Retry with exponential backoff and jitter
// - Primary/fallback model tier selection
// - Cost and latency metric computation

package llm

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hikawa/chatrelay/metrics"
)

// Tier identifies which model answered a completion call.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// GatewayConfig holds gateway tuning knobs.
type GatewayConfig struct {
	Model           string
	FallbackModel   string // empty disables the fallback tier
	SummaryModel    string // empty falls back to Model
	Concurrency     int64
	MaxAttempts     int
	BackoffBase     time.Duration
	PrimaryTimeout  time.Duration
	FallbackTimeout time.Duration
	SummaryTimeout  time.Duration
	// USD per 1k tokens
	PromptTokenCost     float64
	CompletionTokenCost float64
}

// DefaultGatewayConfig returns the gateway defaults.
func DefaultGatewayConfig(model string) GatewayConfig {
	return GatewayConfig{
		Model:           model,
		Concurrency:     3,
		MaxAttempts:     3,
		BackoffBase:     800 * time.Millisecond,
		PrimaryTimeout:  20 * time.Second,
		FallbackTimeout: 30 * time.Second,
		SummaryTimeout:  15 * time.Second,
	}
}

// CallMetrics carries per-call diagnostics.
type CallMetrics struct {
	QueueWait time.Duration
	Invoke    time.Duration
	Attempt   int
	CostUSD   float64
}

// Gateway is a concurrency-bounded, retried, dual-model-fallback wrapper
// around a Provider.
type Gateway struct {
	provider Provider
	config   GatewayConfig
	sem      *semaphore.Weighted
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// sleep is swappable so tests can skip real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a gateway over the given provider.
func NewGateway(provider Provider, config GatewayConfig, logger *zap.Logger, m *metrics.Metrics) *Gateway {
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 800 * time.Millisecond
	}
	if config.PrimaryTimeout <= 0 {
		config.PrimaryTimeout = 20 * time.Second
	}
	if config.FallbackTimeout <= 0 {
		config.FallbackTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Gateway{
		provider: provider,
		config:   config,
		sem:      semaphore.NewWeighted(config.Concurrency),
		logger:   logger,
		metrics:  m,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete sends the rendered messages through the primary model tier, and
// through the fallback tier when the primary exhausts retries or times out.
// On success the chosen tier is returned so callers can surface it.
func (g *Gateway) Complete(ctx context.Context, messages []ChatMessage) (LLMResponse, CallMetrics, Tier, error) {
	resp, cm, err := g.invoke(ctx, messages, g.config.Model, g.config.PrimaryTimeout, "completion")
	if err == nil {
		return resp, cm, TierPrimary, nil
	}

	ce, _ := AsCompletionError(err)
	if g.config.FallbackModel == "" || ce == nil || (ce.Kind != KindTimeout && ce.Kind != KindFinal) {
		g.metrics.CompletionFailures.WithLabelValues(errKindLabel(err)).Inc()
		return LLMResponse{}, cm, TierPrimary, err
	}

	g.logger.Warn("primary model exhausted, trying fallback",
		zap.String("model", g.config.Model),
		zap.String("fallback_model", g.config.FallbackModel),
		zap.String("kind", ce.Kind.String()))

	resp, cm, err = g.invoke(ctx, messages, g.config.FallbackModel, g.config.FallbackTimeout, "fallback")
	if err != nil {
		g.metrics.CompletionFailures.WithLabelValues(errKindLabel(err)).Inc()
		return LLMResponse{}, cm, TierFallback, err
	}
	return resp, cm, TierFallback, nil
}

// Summarize runs a short completion against the summary model tier.
func (g *Gateway) Summarize(ctx context.Context, messages []ChatMessage) (LLMResponse, CallMetrics, error) {
	model := g.config.SummaryModel
	if model == "" {
		model = g.config.Model
	}
	timeout := g.config.SummaryTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	resp, cm, err := g.invoke(ctx, messages, model, timeout, "summary")
	return resp, cm, err
}

// invoke performs the semaphore-gated, retried call against one model.
func (g *Gateway) invoke(ctx context.Context, messages []ChatMessage, model string, timeout time.Duration, purpose string) (LLMResponse, CallMetrics, error) {
	waitStart := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return LLMResponse{}, CallMetrics{}, &CompletionError{Kind: KindTimeout, Message: "cancelled waiting for completion slot", Err: err}
	}
	defer g.sem.Release(1)
	queueWait := time.Since(waitStart)
	g.metrics.QueueWaitSeconds.Observe(queueWait.Seconds())

	var lastErr error
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		g.metrics.CompletionAttempts.WithLabelValues(tierLabel(purpose)).Inc()

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		invokeStart := time.Now()
		resp, err := g.provider.Chat(attemptCtx, messages, model)
		invoke := time.Since(invokeStart)
		cancel()

		cm := CallMetrics{QueueWait: queueWait, Invoke: invoke, Attempt: attempt}
		if err == nil {
			cm.CostUSD = g.cost(resp.Usage)
			g.metrics.InvokeSeconds.Observe(invoke.Seconds())
			g.metrics.CompletionCostUSD.Add(cm.CostUSD)
			g.logEvent(purpose, model, attempt, cm, resp.Usage)
			return resp, cm, nil
		}

		lastErr = err
		if classified := g.classifyFatal(err); classified != nil {
			g.logger.Warn("completion call failed",
				zap.String("purpose", purpose),
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Bool("retriable", false),
				zap.Error(err))
			return LLMResponse{}, cm, classified
		}

		if attempt == g.config.MaxAttempts || !isRetriable(err) {
			break
		}

		backoff := g.config.BackoffBase * (1 << (attempt - 1))
		jitter := time.Duration(rand.Float64() * 0.05 * float64(backoff))
		g.logger.Info("completion retry",
			zap.String("purpose", purpose),
			zap.Int("attempt", attempt),
			zap.Duration("sleep", backoff+jitter))
		if err := g.sleep(ctx, backoff+jitter); err != nil {
			lastErr = err
			break
		}
	}

	g.logger.Warn("completion call failed",
		zap.String("purpose", purpose),
		zap.String("model", model),
		zap.Bool("retriable", isRetriable(lastErr)),
		zap.Error(lastErr))

	if isTimeout(lastErr) {
		return LLMResponse{}, CallMetrics{QueueWait: queueWait}, &CompletionError{Kind: KindTimeout, Message: lastErr.Error(), Err: lastErr}
	}
	return LLMResponse{}, CallMetrics{QueueWait: queueWait}, &CompletionError{Kind: KindFinal, Message: lastErr.Error(), Err: lastErr}
}

// classifyFatal maps provider rejections that must never be retried.
func (g *Gateway) classifyFatal(err error) *CompletionError {
	if isPromptTooLarge(err) {
		return &CompletionError{Kind: KindPromptTooLarge, Message: err.Error(), Err: err}
	}
	if isInvalidRequest(err) {
		return &CompletionError{Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}
	return nil
}

func (g *Gateway) cost(usage *TokenUsage) float64 {
	if usage == nil {
		return 0
	}
	prompt := float64(usage.PromptTokens) / 1000.0 * g.config.PromptTokenCost
	completion := float64(usage.CompletionTokens) / 1000.0 * g.config.CompletionTokenCost
	return prompt + completion
}

func (g *Gateway) logEvent(purpose, model string, attempt int, cm CallMetrics, usage *TokenUsage) {
	fields := []zap.Field{
		zap.String("purpose", purpose),
		zap.String("model", model),
		zap.Int("attempt", attempt),
		zap.Duration("queue_wait", cm.QueueWait),
		zap.Duration("invoke", cm.Invoke),
		zap.Float64("cost_usd", cm.CostUSD),
	}
	if usage != nil {
		fields = append(fields,
			zap.Uint32("prompt_tokens", usage.PromptTokens),
			zap.Uint32("completion_tokens", usage.CompletionTokens),
			zap.Uint32("total_tokens", usage.TotalTokens))
	}
	g.logger.Info("completion call", fields...)
}

func tierLabel(purpose string) string {
	if purpose == "fallback" {
		return string(TierFallback)
	}
	return string(TierPrimary)
}

func errKindLabel(err error) string {
	if ce, ok := AsCompletionError(err); ok {
		return ce.Kind.String()
	}
	return "unknown"
}
