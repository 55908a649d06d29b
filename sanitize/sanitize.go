// Package sanitize removes stale-knowledge disclaimers from model
// replies when fresh search evidence was injected into the prompt.
//
// Information Hiding:
// - Disclaimer pattern set (incl. dynamic year anchoring)
// - Post-removal cleanup and empty-reply fallback

package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Patterns are kept conservative to avoid stripping legitimate content.
var baseJapanesePatterns = []string{
	`現在、?私はインターネットからリアルタイムで(最新)?(ニュース)?を取得できません`,
	`(最新|リアルタイム).{0,10}アクセス(できません|できない)`,
	`リアルタイム.{0,15}(提供|取得)(できません|できない)`,
}

var baseEnglishPatterns = []string{
	`(i|we) (do not|don't|can't) (have )?(real[- ]?time|live) (access|information)`,
	`(as of|my knowledge (cut|is)|knowledge cutoff).{0,30}(20\d\d)`,
	`my training (data|knowledge).{0,40}(only|up to|until)`,
}

// yearRangePatterns adapt knowledge-cutoff phrasing to new years
// without a code change.
func yearRangePatterns(year int) []string {
	return []string{
		fmt.Sprintf(`(私|このモデル|わたし|i|this model).{0,25}(知識|学習|トレーニング|training|knowledge).{0,30}(20(2\d|3\d)|%d|%d)(年|年頃|年まで|まで|時点)?`, year, year-1),
	}
}

const fallbackText = "(検索結果を踏まえて最新と思われる要点を上に示しました。必要なら追加で質問してください。)"

var blankLinesPattern = regexp.MustCompile(`\n{3,}`)

// Options configures the pattern set.
type Options struct {
	// EnableEnglish includes the English disclaimer patterns.
	EnableEnglish bool
	// ExtraPatterns are additional regexes from configuration. Invalid
	// ones are skipped with a warning.
	ExtraPatterns []string
}

// Sanitizer holds the compiled pattern set.
type Sanitizer struct {
	patterns []*regexp.Regexp
	logger   *zap.Logger
}

// New compiles the disclaimer patterns for the current year.
func New(opts Options, logger *zap.Logger) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw := append([]string{}, baseJapanesePatterns...)
	raw = append(raw, yearRangePatterns(time.Now().Year())...)
	if opts.EnableEnglish {
		raw = append(raw, baseEnglishPatterns...)
	}
	raw = append(raw, opts.ExtraPatterns...)

	compiled := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			logger.Warn("invalid disclaimer pattern skipped", zap.String("pattern", p), zap.Error(err))
			continue
		}
		compiled = append(compiled, re)
	}
	logger.Info("disclaimer patterns compiled", zap.Int("count", len(compiled)))
	return &Sanitizer{patterns: compiled, logger: logger}
}

// Clean removes disclaimer matches from the reply. Identity unless a
// search actually ran; a reply emptied by removal becomes a fixed
// fallback sentence.
func (s *Sanitizer) Clean(reply string, searchExecuted bool) string {
	if !searchExecuted || reply == "" {
		return reply
	}
	cleaned := reply
	removedAny := false
	for _, re := range s.patterns {
		next := re.ReplaceAllString(cleaned, "")
		if next != cleaned {
			removedAny = true
			cleaned = next
		}
	}
	cleaned = strings.TrimSpace(blankLinesPattern.ReplaceAllString(cleaned, "\n\n"))
	if removedAny {
		s.logger.Info("disclaimer removed from reply")
		if cleaned == "" {
			return fallbackText
		}
	}
	return cleaned
}
