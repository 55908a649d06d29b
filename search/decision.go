// Search decision and query optimization.
//
// Information Hiding:
// - Datetime direct-answer detection
// - Scoring heuristics for whether a message needs fresh information
// - Query cleanup and recency enrichment

package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hikawa/chatrelay/llm"
)

// DecisionType is the tagged-variant discriminator of a Decision.
type DecisionType int

const (
	// DecisionNone means no search is needed.
	DecisionNone DecisionType = iota
	// DecisionQuery means a web search should run with the optimized query.
	DecisionQuery
	// DecisionDatetimeAnswer means the message can be answered directly
	// with the current date/time, no search or LLM call needed.
	DecisionDatetimeAnswer
)

// String returns the decision type name for logging.
func (d DecisionType) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionQuery:
		return "query"
	case DecisionDatetimeAnswer:
		return "datetime_answer"
	default:
		return "unknown"
	}
}

// Decision is the per-message search verdict. Exactly one variant applies.
type Decision struct {
	Type         DecisionType
	Query        string
	DirectAnswer string
	Score        int
	Reasons      []string
}

// EngineConfig holds the scoring configuration.
type EngineConfig struct {
	SearchPatterns  []string
	QuestionWords   []string
	FactualKeywords []string
	EnrichKeywords  []string
	MinScore        int
	PatternScore    int
	QuestionScore   int
	FactualScore    int
	Aggressive      bool
}

// enrichment keywords that bias a query toward recency
var defaultEnrichKeywords = []string{"株価", "為替", "ニュース", "速報", "物価", "金利"}

// DefaultEngineConfig returns the scoring defaults. Aggressive mode lowers
// the decision threshold from 2 to 1 and enables extra form heuristics.
func DefaultEngineConfig(aggressive bool) EngineConfig {
	year := time.Now().Year()
	minScore := 2
	if aggressive {
		minScore = 1
	}
	return EngineConfig{
		SearchPatterns: []string{
			`最新.+?(情報|データ|状況)`,
			`今日.+?ニュース`,
			`最近.+?(話題|トレンド)`,
			`.+?(について)?調べて`,
			`.+?の最新`,
			`.+?はいつ`,
			`.+?の(値段|価格|相場)`,
			`.+?の評判`,
			`.+?のレビュー`,
			`.+?天気`,
			`.+?株価`,
			`.+?為替`,
			`.+?の速報`,
			`.+?の開催`,
			`.+?のイベント`,
		},
		QuestionWords:   []string{"何", "いつ", "どこ", "だれ", "どう", "なぜ", "どの", "どんな"},
		FactualKeywords: []string{strconv.Itoa(year - 1), strconv.Itoa(year), "今年", "現在", "最新", "今", "最近"},
		EnrichKeywords:  defaultEnrichKeywords,
		MinScore:        minScore,
		PatternScore:    2,
		QuestionScore:   1,
		FactualScore:    1,
		Aggressive:      aggressive,
	}
}

// Engine scores incoming messages and decides whether to search.
type Engine struct {
	config   EngineConfig
	patterns []*regexp.Regexp
	logger   *zap.Logger
	now      func() time.Time
}

var mentionPattern = regexp.MustCompile(`<@!?\d+>`)
var mentionLoosePattern = regexp.MustCompile(`<@!?.+?>`)
var bracketPattern = regexp.MustCompile(`[（）「」『』【】［］]`)
var whitespacePattern = regexp.MustCompile(`\s+`)

var datetimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`今日[は]?何日`),
	regexp.MustCompile(`現在の日時`),
	regexp.MustCompile(`今[は]?何時`),
	regexp.MustCompile(`今日の日付`),
	regexp.MustCompile(`本日の日付`),
	regexp.MustCompile(`今日の曜日`),
	regexp.MustCompile(`今の時間`),
	regexp.MustCompile(`現在の時間`),
}

// NewEngine compiles the configured patterns. Patterns that fail to
// compile are skipped with a warning rather than failing engine creation.
func NewEngine(config EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make([]*regexp.Regexp, 0, len(config.SearchPatterns))
	for _, raw := range config.SearchPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			logger.Warn("invalid search pattern skipped", zap.String("pattern", raw), zap.Error(err))
			continue
		}
		patterns = append(patterns, re)
	}
	return &Engine{
		config:   config,
		patterns: patterns,
		logger:   logger,
		now:      time.Now,
	}
}

// Decide evaluates the latest user-authored message of the window.
// The datetime short-circuit is checked first and wins unconditionally.
func (e *Engine) Decide(messages []llm.ChatMessage) Decision {
	latest, ok := latestUserMessage(messages)
	if !ok {
		return Decision{Type: DecisionNone, Reasons: []string{}}
	}

	raw := latest.Text()
	lower := strings.ToLower(raw)

	if answer, ok := e.datetimeDirectAnswer(lower); ok {
		e.logger.Info("search decision",
			zap.String("type", DecisionDatetimeAnswer.String()),
			zap.String("reasons", "datetime_pattern"))
		return Decision{
			Type:         DecisionDatetimeAnswer,
			DirectAnswer: answer,
			Reasons:      []string{"datetime_pattern"},
		}
	}

	score, reasons := e.evaluate(lower)
	if e.config.Aggressive && score == 0 {
		if strings.HasSuffix(lower, "?") || strings.HasSuffix(lower, "？") ||
			containsAny(lower, []string{"教えて", "とは", "まとめて", "一覧"}) {
			score = 1
			reasons = append(reasons, "aggressive_form")
		}
	}

	if score < e.config.MinScore {
		e.logger.Info("search decision",
			zap.String("type", DecisionNone.String()),
			zap.Int("score", score),
			zap.String("reasons", strings.Join(reasons, ",")))
		return Decision{Type: DecisionNone, Score: score, Reasons: reasons}
	}

	query := truncateRunes(e.optimizeQuery(cleanQuery(raw)), 100)
	e.logger.Info("search decision",
		zap.String("type", DecisionQuery.String()),
		zap.Int("score", score),
		zap.String("reasons", strings.Join(reasons, ",")),
		zap.String("query", query))
	return Decision{
		Type:    DecisionQuery,
		Query:   query,
		Score:   score,
		Reasons: reasons,
	}
}

func latestUserMessage(messages []llm.ChatMessage) (llm.ChatMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i], true
		}
	}
	return llm.ChatMessage{}, false
}

// datetimeDirectAnswer returns a pre-formatted JST answer for date/time
// questions. The phrasing depends on whether a date or a time was asked.
func (e *Engine) datetimeDirectAnswer(lower string) (string, bool) {
	matched := false
	for _, re := range datetimePatterns {
		if re.MatchString(lower) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	now := e.now()
	if jst, err := time.LoadLocation("Asia/Tokyo"); err == nil {
		now = now.In(jst)
	}
	if containsAny(lower, []string{"何日", "日付", "今日"}) {
		return fmt.Sprintf("本日は「%s」です。", now.Format("2006年01月02日")), true
	}
	if containsAny(lower, []string{"何時", "時間", "現在"}) {
		return fmt.Sprintf("現在の時刻は「%s」です。", now.Format("15:04")), true
	}
	return fmt.Sprintf("現在日時は「%s」です。", now.Format("2006年01月02日 15:04")), true
}

// evaluate accumulates the decision score. Each signal contributes at
// most once; only the first matching pattern counts.
func (e *Engine) evaluate(content string) (int, []string) {
	score := 0
	reasons := []string{}
	for _, re := range e.patterns {
		if re.MatchString(content) {
			score += e.config.PatternScore
			reasons = append(reasons, "pattern:"+re.String())
			break
		}
	}
	if containsAny(content, e.config.QuestionWords) {
		score += e.config.QuestionScore
		reasons = append(reasons, "question_form")
	}
	if containsAny(content, e.config.FactualKeywords) {
		score += e.config.FactualScore
		reasons = append(reasons, "factual_keyword")
	}
	return score, reasons
}

// cleanQuery strips mention tokens and collapses whitespace.
// An empty result falls back to a generic news query.
func cleanQuery(query string) string {
	query = mentionPattern.ReplaceAllString(query, "")
	query = strings.TrimSpace(whitespacePattern.ReplaceAllString(query, " "))
	if query == "" {
		return "最新ニュース"
	}
	return query
}

// optimizeQuery strips bracket punctuation and appends recency tokens for
// enrichment-keyword queries that lack an explicit year or "now" marker.
func (e *Engine) optimizeQuery(query string) string {
	original := query
	q := mentionLoosePattern.ReplaceAllString(query, " ")
	q = bracketPattern.ReplaceAllString(q, " ")
	q = strings.TrimSpace(whitespacePattern.ReplaceAllString(q, " "))

	year := e.now().Year()
	lowered := strings.ToLower(q)
	timeTokens := []string{strconv.Itoa(year), strconv.Itoa(year - 1), "最新", "現在"}
	needsTimeBoost := !containsAny(lowered, timeTokens) && utf8.RuneCountInString(q) < 60
	if containsAny(q, e.config.EnrichKeywords) && needsTimeBoost {
		q = fmt.Sprintf("%s 現在 %d 最新", q, year)
	}
	q = truncateRunes(q, 120)
	if q != original {
		e.logger.Info("query optimized", zap.String("before", original), zap.String("after", q))
	}
	return q
}

// truncateRunes limits a string to n runes without splitting characters.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
