package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	data  Data
	err   error
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(ctx context.Context, query string, maxResults int) (Data, error) {
	p.calls++
	return p.data, p.err
}

func newTestBuilder(p Provider) *ContextBuilder {
	b := NewContextBuilder(p, NewCache(180*time.Second, 16, nil, nil), nil, nil)
	b.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}
	return b
}

func queryDecision(q string) Decision {
	return Decision{Type: DecisionQuery, Query: q}
}

func TestContextSkippedWithoutQuery(t *testing.T) {
	p := &stubProvider{}
	b := newTestBuilder(p)

	res := b.Build(context.Background(), Decision{Type: DecisionNone})
	assert.Equal(t, "SKIPPED", res.Status)
	assert.False(t, res.Executed)
	assert.Empty(t, res.Context)
	assert.Zero(t, p.calls)
}

func TestContextFormatsResults(t *testing.T) {
	p := &stubProvider{data: Data{Status: StatusOK, Results: []Result{
		{Title: "トヨタ株が上昇", Snippet: "前日比3%高。", URL: "https://news.example.com/1"},
		{Title: "", Snippet: "", URL: "https://news.example.com/2"},
	}}}
	b := newTestBuilder(p)

	res := b.Build(context.Background(), queryDecision("トヨタ 株価"))
	require.Equal(t, "OK", res.Status)
	assert.True(t, res.Executed)
	assert.Contains(t, res.Context, "【Web検索結果（取得時刻: 2026-03-14 12:00:00 UTC）】")
	assert.Contains(t, res.Context, "1. トヨタ株が上昇")
	assert.Contains(t, res.Context, "https://news.example.com/1")
	assert.Contains(t, res.Context, "タイトルなし")
	assert.Contains(t, res.Context, "スニペットなし")
}

func TestContextLimitsItemsAndLength(t *testing.T) {
	longSnippet := strings.Repeat("あ", 400)
	results := make([]Result, 6)
	for i := range results {
		results[i] = Result{Title: "t", Snippet: longSnippet, URL: "https://example.com"}
	}
	p := &stubProvider{data: Data{Status: StatusOK, Results: results}}
	b := newTestBuilder(p)

	res := b.Build(context.Background(), queryDecision("q"))
	require.Equal(t, "OK", res.Status)
	assert.NotContains(t, res.Context, "4. ")
	assert.Contains(t, res.Context, "(以降省略)")
	// Snippets are capped well below their raw 400 runes.
	assert.NotContains(t, res.Context, strings.Repeat("あ", 221))
}

func TestContextTotalCapCountsRunes(t *testing.T) {
	// Three blocks of roughly 226 runes each stay under the 1200-rune
	// total even though their combined byte length is well past it.
	snippet := strings.Repeat("あ", 200)
	results := []Result{
		{Title: "一", Snippet: snippet, URL: "https://example.com/1"},
		{Title: "二", Snippet: snippet, URL: "https://example.com/2"},
		{Title: "三", Snippet: snippet, URL: "https://example.com/3"},
	}
	p := &stubProvider{data: Data{Status: StatusOK, Results: results}}
	b := newTestBuilder(p)

	res := b.Build(context.Background(), queryDecision("q"))
	require.Equal(t, "OK", res.Status)
	assert.Contains(t, res.Context, "1. 一")
	assert.Contains(t, res.Context, "2. 二")
	assert.Contains(t, res.Context, "3. 三")
	assert.NotContains(t, res.Context, "(以降省略)")
}

func TestContextDegradedNotes(t *testing.T) {
	tests := []struct {
		name       string
		data       Data
		wantStatus string
		wantText   string
	}{
		{"no results", Data{Status: StatusNoResults}, "NO_RESULTS", "該当する検索結果が見つかりませんでした"},
		{"provider error", Data{Status: StatusError, ErrorMessage: "boom"}, "ERROR", "検索エラー: boom"},
		{"ok but empty", Data{Status: StatusOK}, "UNKNOWN", "具体的な最新情報は取得できませんでした"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(&stubProvider{data: tt.data})
			res := b.Build(context.Background(), queryDecision("q"))
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.False(t, res.Executed)
			assert.Contains(t, res.Context, tt.wantText)
		})
	}
}

func TestContextCachesByQuery(t *testing.T) {
	p := &stubProvider{data: okData("cached")}
	b := newTestBuilder(p)

	first := b.Build(context.Background(), queryDecision("同じクエリ"))
	second := b.Build(context.Background(), queryDecision("同じクエリ"))
	assert.Equal(t, 1, p.calls, "second build within TTL is served from cache")
	assert.Equal(t, first.Context, second.Context)

	b.Build(context.Background(), queryDecision("別のクエリ"))
	assert.Equal(t, 2, p.calls)
}

func TestContextCachesFailuresToo(t *testing.T) {
	p := &stubProvider{data: Data{Status: StatusNoResults}}
	b := newTestBuilder(p)

	b.Build(context.Background(), queryDecision("q"))
	b.Build(context.Background(), queryDecision("q"))
	assert.Equal(t, 1, p.calls, "fruitless query is not retried within the TTL")
}
