package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts a sequence of responses/errors per model.
type fakeProvider struct {
	model   string
	calls   []fakeCall
	history []string // models invoked, in order
}

type fakeCall struct {
	resp LLMResponse
	err  error
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) Chat(ctx context.Context, messages []ChatMessage, model string) (LLMResponse, error) {
	f.history = append(f.history, model)
	if len(f.calls) == 0 {
		return LLMResponse{Content: "ok"}, nil
	}
	call := f.calls[0]
	f.calls = f.calls[1:]
	return call.resp, call.err
}

func newTestGateway(p Provider, cfg GatewayConfig) *Gateway {
	g := NewGateway(p, cfg, nil, nil)
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return g
}

func TestGatewayRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{
		model: "primary-model",
		calls: []fakeCall{
			{err: errors.New("429 rate limit exceeded")},
			{err: errors.New("server overloaded")},
			{resp: LLMResponse{Content: "answer", Usage: &TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}}},
		},
	}
	g := newTestGateway(p, DefaultGatewayConfig("primary-model"))

	resp, cm, tier, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, 3, cm.Attempt)
	assert.Equal(t, TierPrimary, tier)
}

func TestGatewayNonRetriableAbortsImmediately(t *testing.T) {
	p := &fakeProvider{
		model: "primary-model",
		calls: []fakeCall{
			{err: errors.New("invalid request: bad role")},
			{resp: LLMResponse{Content: "should never be reached"}},
		},
	}
	g := newTestGateway(p, DefaultGatewayConfig("primary-model"))

	_, _, _, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	require.Error(t, err)
	ce, ok := AsCompletionError(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidRequest, ce.Kind)
	assert.Len(t, p.history, 1, "must not retry a non-retriable error")
}

func TestGatewayFallbackTier(t *testing.T) {
	cfg := DefaultGatewayConfig("primary-model")
	cfg.FallbackModel = "fallback-model"
	p := &fakeProvider{
		model: "primary-model",
		calls: []fakeCall{
			{err: errors.New("timeout while waiting for response")},
			{err: errors.New("timeout while waiting for response")},
			{err: errors.New("timeout while waiting for response")},
			{resp: LLMResponse{Content: "rescued"}},
		},
	}
	g := newTestGateway(p, cfg)

	resp, _, tier, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, TierFallback, tier)
	assert.Equal(t, "rescued", resp.Content)
	require.Len(t, p.history, 4)
	assert.Equal(t, "primary-model", p.history[0])
	assert.Equal(t, "fallback-model", p.history[3])
}

func TestGatewayFallbackFailurePropagates(t *testing.T) {
	cfg := DefaultGatewayConfig("primary-model")
	cfg.FallbackModel = "fallback-model"
	cfg.MaxAttempts = 1
	p := &fakeProvider{
		model: "primary-model",
		calls: []fakeCall{
			{err: errors.New("503 service unavailable")},
			{err: errors.New("503 service unavailable")},
		},
	}
	g := newTestGateway(p, cfg)

	_, _, tier, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, TierFallback, tier)
	ce, ok := AsCompletionError(err)
	require.True(t, ok)
	assert.Equal(t, KindFinal, ce.Kind)
}

func TestGatewayPromptTooLargeNoFallback(t *testing.T) {
	cfg := DefaultGatewayConfig("primary-model")
	cfg.FallbackModel = "fallback-model"
	p := &fakeProvider{
		model: "primary-model",
		calls: []fakeCall{
			{err: errors.New("This model's maximum context length is 8192 tokens")},
		},
	}
	g := newTestGateway(p, cfg)

	_, _, _, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	require.Error(t, err)
	ce, ok := AsCompletionError(err)
	require.True(t, ok)
	assert.Equal(t, KindPromptTooLarge, ce.Kind)
	assert.Len(t, p.history, 1, "prompt-too-large must not reach the fallback tier")
}

func TestGatewayCostComputation(t *testing.T) {
	cfg := DefaultGatewayConfig("primary-model")
	cfg.PromptTokenCost = 0.01
	cfg.CompletionTokenCost = 0.03
	p := &fakeProvider{
		model: "primary-model",
		calls: []fakeCall{
			{resp: LLMResponse{Content: "ok", Usage: &TokenUsage{PromptTokens: 2000, CompletionTokens: 1000, TotalTokens: 3000}}},
		},
	}
	g := newTestGateway(p, cfg)

	_, cm, _, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	require.NoError(t, err)
	assert.InDelta(t, 0.02+0.03, cm.CostUSD, 1e-9)
}

func TestGatewaySummarizeUsesSummaryModel(t *testing.T) {
	cfg := DefaultGatewayConfig("primary-model")
	cfg.SummaryModel = "summary-model"
	p := &fakeProvider{model: "primary-model"}
	g := newTestGateway(p, cfg)

	_, _, err := g.Summarize(context.Background(), []ChatMessage{UserMessage("summarize this")})
	require.NoError(t, err)
	require.Len(t, p.history, 1)
	assert.Equal(t, "summary-model", p.history[0])
}
