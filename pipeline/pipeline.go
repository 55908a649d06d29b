// Package pipeline assembles the full message-to-reply flow: admission,
// history summarization, search decision, context augmentation,
// completion with fallback, and reply sanitization.
//
// Information Hiding:
// - Component wiring and error-to-result mapping
// - Summarization trigger heuristics

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hikawa/chatrelay/guard"
	"github.com/hikawa/chatrelay/llm"
	"github.com/hikawa/chatrelay/prompt"
	"github.com/hikawa/chatrelay/sanitize"
	"github.com/hikawa/chatrelay/search"
)

// Status is the terminal outcome of one pipeline request.
type Status int

const (
	StatusOK Status = iota
	StatusTooLong
	StatusInvalidRequest
	StatusOtherError
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTooLong:
		return "TOO_LONG"
	case StatusInvalidRequest:
		return "INVALID_REQUEST"
	case StatusOtherError:
		return "OTHER_ERROR"
	default:
		return "unknown"
	}
}

// Result is the outcome of Respond. Reply is set only for StatusOK;
// StatusText carries diagnostic detail for the failure statuses.
type Result struct {
	Status     Status
	Reply      string
	StatusText string
}

const (
	// MaxCharsPerReply is the chunk size for SplitReply. Chat platforms
	// cap message length around 2k; 1.5k leaves formatting headroom.
	MaxCharsPerReply = 1500

	// DebounceDelay coalesces rapid-fire user messages before a
	// channel/thread message is processed.
	DebounceDelay = 3 * time.Second

	timeoutApology = "申し訳ありませんが、AIサービスがタイムアウトしました。しばらく待ってから再度お試しください。"

	summaryInstruction = "以下は過去会話の生ログです。重要な事実・ユーザーの意図・未回答の要求・決定事項を日本語で簡潔に列挙し、不要な挨拶や雑談は除外し200～300文字程度に要約してください。出力は箇条書き風で。"
)

// Config holds pipeline tuning knobs.
type Config struct {
	Model         string
	FallbackModel string

	// Summarization trigger: conversation context above this many
	// approximate tokens (4 chars/token) gets compressed, as long as
	// it is still under SummaryMaxSourceChars.
	SummaryTriggerTokens  int
	SummaryMaxSourceChars int
	SummaryTargetRatio    float64
}

// DefaultConfig returns the pipeline defaults for the given models.
func DefaultConfig(model, fallbackModel string) Config {
	return Config{
		Model:                 model,
		FallbackModel:         fallbackModel,
		SummaryTriggerTokens:  2800,
		SummaryMaxSourceChars: 8000,
		SummaryTargetRatio:    0.5,
	}
}

// Pipeline wires the components into one Respond flow.
type Pipeline struct {
	config    Config
	engine    *search.Engine
	searchCtx *search.ContextBuilder
	prompts   *prompt.Builder
	gateway   *llm.Gateway
	sanitizer *sanitize.Sanitizer
	dedup     *guard.Deduplicator
	limiter   *guard.RateLimiter
	logger    *zap.Logger
}

// New assembles a pipeline from its components.
func New(
	config Config,
	engine *search.Engine,
	searchCtx *search.ContextBuilder,
	prompts *prompt.Builder,
	gateway *llm.Gateway,
	sanitizer *sanitize.Sanitizer,
	dedup *guard.Deduplicator,
	limiter *guard.RateLimiter,
	logger *zap.Logger,
) *Pipeline {
	if config.SummaryTriggerTokens <= 0 {
		config.SummaryTriggerTokens = 2800
	}
	if config.SummaryMaxSourceChars <= 0 {
		config.SummaryMaxSourceChars = 8000
	}
	if config.SummaryTargetRatio <= 0 || config.SummaryTargetRatio > 1 {
		config.SummaryTargetRatio = 0.5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:    config,
		engine:    engine,
		searchCtx: searchCtx,
		prompts:   prompts,
		gateway:   gateway,
		sanitizer: sanitizer,
		dedup:     dedup,
		limiter:   limiter,
		logger:    logger,
	}
}

// Admit gates an inbound message: duplicate delivery of the same
// message id and per-user rate limits both drop it silently.
func (p *Pipeline) Admit(messageID, userID string) bool {
	if p.dedup.Seen(messageID) {
		p.logger.Info("duplicate message dropped", zap.String("message_id", messageID))
		return false
	}
	p.dedup.Mark(messageID)
	if !p.limiter.Allow(userID) {
		p.logger.Info("rate limited message dropped",
			zap.String("message_id", messageID),
			zap.String("user_id", userID))
		return false
	}
	return true
}

// Respond runs the full pipeline over the conversation window. It never
// panics outward; every failure maps to a terminal Result.
func (p *Pipeline) Respond(ctx context.Context, window []llm.ChatMessage, conversationContext string) Result {
	logger := p.logger.With(zap.String("request_id", uuid.NewString()))

	conversationContext, summaryApplied := p.maybeSummarize(ctx, logger, conversationContext)

	decision := p.engine.Decide(window)
	if decision.Type == search.DecisionDatetimeAnswer {
		return Result{Status: StatusOK, Reply: decision.DirectAnswer}
	}

	sc := p.searchCtx.Build(ctx, decision)

	augmented, meta := p.prompts.Augment(window, conversationContext, sc.Context, sc.Executed)

	resp, cm, tier, err := p.gateway.Complete(ctx, augmented)
	if err != nil {
		return p.mapError(logger, err)
	}

	reply := strings.TrimSpace(resp.Content)
	switch tier {
	case llm.TierPrimary:
		reply = fmt.Sprintf("(model: %s) %s", p.config.Model, reply)
	case llm.TierFallback:
		reply = fmt.Sprintf("(fallback: %s) %s", p.config.FallbackModel, reply)
	}
	reply = p.sanitizer.Clean(reply, sc.Executed)

	fields := []zap.Field{
		zap.String("decision", decision.Type.String()),
		zap.Int("decision_score", decision.Score),
		zap.Strings("decision_reasons", decision.Reasons),
		zap.Duration("queue_wait", cm.QueueWait),
		zap.Duration("invoke", cm.Invoke),
		zap.Int("attempt", cm.Attempt),
		zap.Float64("cost_usd", cm.CostUSD),
		zap.Int("messages", len(augmented)),
		zap.Int("reply_chars", utf8.RuneCountInString(reply)),
		zap.String("tier", string(tier)),
		zap.Bool("summary_applied", summaryApplied),
		zap.Bool("augment_truncated", meta.ConversationTruncated),
		zap.Strings("augment_sections", meta.Sections),
		zap.Bool("search_executed", sc.Executed),
		zap.String("search_status", sc.Status),
	}
	if resp.Usage != nil {
		fields = append(fields,
			zap.Uint32("prompt_tokens", resp.Usage.PromptTokens),
			zap.Uint32("completion_tokens", resp.Usage.CompletionTokens),
			zap.Uint32("total_tokens", resp.Usage.TotalTokens))
	}
	logger.Info("completion metrics", fields...)

	return Result{Status: StatusOK, Reply: reply}
}

// maybeSummarize compresses an oversized conversation context through
// the gateway's summary model. Summarization failures keep the raw
// context; the pipeline must not die on an optimization step.
func (p *Pipeline) maybeSummarize(ctx context.Context, logger *zap.Logger, conversationContext string) (string, bool) {
	if conversationContext == "" {
		return conversationContext, false
	}
	chars := utf8.RuneCountInString(conversationContext)
	approxTokens := chars / 4
	if approxTokens <= p.config.SummaryTriggerTokens || chars >= p.config.SummaryMaxSourceChars {
		return conversationContext, false
	}

	resp, _, err := p.gateway.Summarize(ctx, []llm.ChatMessage{
		llm.SystemMessage(summaryInstruction),
		llm.UserMessage(conversationContext),
	})
	if err != nil {
		logger.Warn("history summarization failed, keeping raw context", zap.Error(err))
		return conversationContext, false
	}

	summarized := strings.TrimSpace(resp.Content)
	if summarized == "" {
		return conversationContext, false
	}
	targetChars := int(float64(chars) * p.config.SummaryTargetRatio)
	if sumRunes := []rune(summarized); len(sumRunes) > targetChars && targetChars > 15 {
		summarized = string(sumRunes[:targetChars-15]) + "..."
	}
	logger.Info("history summarized",
		zap.Int("orig_chars", chars),
		zap.Int("summary_chars", utf8.RuneCountInString(summarized)))
	return summarized, true
}

// mapError converts the gateway's error taxonomy into a terminal Result.
func (p *Pipeline) mapError(logger *zap.Logger, err error) Result {
	if ce, ok := llm.AsCompletionError(err); ok {
		switch ce.Kind {
		case llm.KindTimeout, llm.KindFinal:
			logger.Warn("completion exhausted, replying with apology", zap.Error(err))
			return Result{Status: StatusOK, Reply: timeoutApology}
		case llm.KindPromptTooLarge:
			return Result{Status: StatusTooLong, StatusText: ce.Message}
		case llm.KindInvalidRequest:
			logger.Error("invalid completion request", zap.Error(err))
			return Result{Status: StatusInvalidRequest, StatusText: ce.Message}
		}
	}
	logger.Error("completion failed", zap.Error(err))
	return Result{Status: StatusOtherError, StatusText: err.Error()}
}

// SplitReply breaks a reply into platform-sized chunks without
// splitting multi-byte characters.
func SplitReply(reply string) []string {
	if reply == "" {
		return nil
	}
	runes := []rune(reply)
	var chunks []string
	for start := 0; start < len(runes); start += MaxCharsPerReply {
		end := start + MaxCharsPerReply
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// IsStale reports whether the channel moved on while this request was
// being processed: another user has posted a newer message since the
// triggering one. Stale results are discarded, never sent.
func IsStale(triggerMessageID, lastMessageID, lastAuthorID, botID string) bool {
	return lastMessageID != "" &&
		lastMessageID != triggerMessageID &&
		lastAuthorID != "" &&
		lastAuthorID != botID
}
