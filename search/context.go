// Search execution and context building.
//
// Information Hiding:
// - Cache-first lookup policy
// - Result summarization and truncation to bound token usage
// - Degraded contextual notes for failed or empty searches

package search

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hikawa/chatrelay/metrics"
)

// Summarization limits for the injected context.
const (
	maxContextItems = 3
	maxSnippetChars = 220
	maxContextChars = 1200
)

// ContextResult is the outcome of building search context for a message.
type ContextResult struct {
	Context  string
	Executed bool   // true only when real results were injected
	Status   string // OK, NO_RESULTS, ERROR, SKIPPED, UNKNOWN
}

// ContextBuilder runs searches through the cache and renders the results
// into a prompt-ready context block. Search failures never abort the
// pipeline; they degrade to contextual notes.
type ContextBuilder struct {
	provider Provider
	cache    *Cache
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewContextBuilder creates a builder over the provider and cache.
func NewContextBuilder(provider Provider, cache *Cache, logger *zap.Logger, m *metrics.Metrics) *ContextBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &ContextBuilder{
		provider: provider,
		cache:    cache,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Build executes the search implied by the decision. The cache key is the
// final optimized query; a hit short-circuits the network entirely.
// Results are cached even when empty so a fruitless query is not retried
// within the TTL window.
func (b *ContextBuilder) Build(ctx context.Context, decision Decision) ContextResult {
	if decision.Type != DecisionQuery || decision.Query == "" {
		return ContextResult{Status: "SKIPPED"}
	}
	query := decision.Query
	b.logger.Info("web search triggered", zap.String("query", query))

	data, cacheHit := b.cache.Get(query)
	if !cacheHit {
		fetched, err := b.provider.Search(ctx, query, maxContextItems)
		if err != nil {
			b.logger.Error("web search failed before context build", zap.Error(err))
			fetched = Data{Status: StatusError, ErrorMessage: err.Error()}
		}
		b.metrics.SearchesExecuted.Inc()
		b.cache.Set(query, fetched)
		data = fetched
	}

	b.logger.Info("web search result",
		zap.Bool("cache_hit", cacheHit),
		zap.String("status", data.Status.String()),
		zap.String("error", data.ErrorMessage),
		zap.Int("results", len(data.Results)))

	switch {
	case data.Status == StatusOK && len(data.Results) > 0:
		return ContextResult{Context: b.renderResults(query, data), Executed: true, Status: "OK"}
	case data.Status == StatusNoResults:
		note := fmt.Sprintf("\n\n【Web検索情報】\n「%s」について検索を試行しましたが、該当する検索結果が見つかりませんでした。一般的な知識で回答してください。\n（検索ステータス: NO_RESULTS）\n", query)
		return ContextResult{Context: note, Status: "NO_RESULTS"}
	case data.Status == StatusError:
		detail := data.ErrorMessage
		if detail == "" {
			detail = "不明なエラー"
		}
		note := fmt.Sprintf("\n\n【Web検索情報】\n「%s」について検索を試行しましたが、技術的な問題により最新情報を取得できませんでした。\n（検索エラー: %s）\n", query, detail)
		return ContextResult{Context: note, Status: "ERROR"}
	default:
		note := fmt.Sprintf("\n\n【Web検索情報】\n「%s」について検索を試行しましたが、具体的な最新情報は取得できませんでした。一般的な知識で回答してください。\n（検索ステータス: 不明）\n", query)
		return ContextResult{Context: note, Status: "UNKNOWN"}
	}
}

// renderResults formats OK results with a fetch timestamp header,
// bounding snippet and total length.
func (b *ContextBuilder) renderResults(query string, data Data) string {
	ts := b.now().Format("2006-01-02 15:04:05 MST")
	header := fmt.Sprintf("\n\n【Web検索結果（取得時刻: %s）】\n", ts)

	var parts []string
	currentLen := 0
	for i, result := range data.Results {
		if i >= maxContextItems {
			break
		}
		title := strings.TrimSpace(result.Title)
		if title == "" {
			title = "タイトルなし"
		}
		snippet := strings.TrimSpace(result.Snippet)
		if snippet == "" {
			snippet = "スニペットなし"
		}
		snippet = truncateWithEllipsis(snippet, maxSnippetChars)
		block := fmt.Sprintf("%d. %s\n%s\n%s\n", i+1, title, snippet, strings.TrimSpace(result.URL))
		blockLen := utf8.RuneCountInString(block)
		if currentLen+blockLen > maxContextChars {
			parts = append(parts, "(以降省略)\n")
			break
		}
		parts = append(parts, block)
		currentLen += blockLen
	}

	out := header + strings.Join(parts, "\n") + "\n"
	b.logger.Info("search context added",
		zap.Int("chars", utf8.RuneCountInString(out)),
		zap.String("query", query))
	return out
}

func truncateWithEllipsis(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
