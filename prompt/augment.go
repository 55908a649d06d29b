// Package prompt merges conversation history, search results and reply
// guidelines into the system section of an outgoing message list.
//
// Information Hiding:
// - Section marker format enabling idempotent re-augmentation
// - Suffix-keeping truncation of long conversation context

package prompt

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hikawa/chatrelay/llm"
)

// DefaultMaxHistoryChars bounds the injected conversation context.
const DefaultMaxHistoryChars = 4000

const (
	conversationHeader = "会話履歴:"
	elisionMarker      = "\n...(前方省略)...\n"

	// Injected whenever a search ran, so the model does not contradict
	// the evidence above with canned real-time-access disclaimers.
	searchGuideline = "最新ニュース系の質問に対して、上に最新検索結果がある場合は『リアルタイム取得できません』等の定型免責を繰り返さず、検索結果と一般知識を統合し簡潔で正確な日本語要約を提供してください。"
)

// Section names embedded as markers in the system message. A later
// augmentation call locates prior sections by marker and replaces them.
const (
	SectionConversation = "conversation-context"
	SectionSearch       = "search-context"
	SectionGuideline    = "reply-guideline"
)

var sectionNames = []string{SectionConversation, SectionSearch, SectionGuideline}

// Meta records what an Augment call injected.
type Meta struct {
	ConversationTruncated     bool
	ConversationOriginalChars int
	ConversationUsedChars     int
	Sections                  []string
	AddedSystem               bool
}

// Builder performs prompt augmentation. Zero-value-unsafe; use NewBuilder.
type Builder struct {
	maxHistoryChars int
	stripPatterns   map[string]*regexp.Regexp
	logger          *zap.Logger
}

// NewBuilder creates a Builder with the given history budget.
// Non-positive budgets fall back to the default.
func NewBuilder(maxHistoryChars int, logger *zap.Logger) *Builder {
	if maxHistoryChars <= 0 {
		maxHistoryChars = DefaultMaxHistoryChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	strip := make(map[string]*regexp.Regexp, len(sectionNames))
	for _, name := range sectionNames {
		strip[name] = regexp.MustCompile(
			`(?s)` + regexp.QuoteMeta(openMarker(name)) + `.*?` + regexp.QuoteMeta(closeMarker(name)))
	}
	return &Builder{
		maxHistoryChars: maxHistoryChars,
		stripPatterns:   strip,
		logger:          logger,
	}
}

func openMarker(name string) string  { return "[" + name + "]" }
func closeMarker(name string) string { return "[/" + name + "]" }

func sectionBlock(name, body string) string {
	return openMarker(name) + "\n" + body + "\n" + closeMarker(name)
}

// Augment merges the given contexts into the message list's system
// message, creating one at position 0 if absent. The input slice is never
// mutated. Re-augmenting an already augmented list replaces the prior
// sections instead of duplicating them.
func (b *Builder) Augment(messages []llm.ChatMessage, conversationContext, searchContext string, searchExecuted bool) ([]llm.ChatMessage, Meta) {
	out := make([]llm.ChatMessage, len(messages))
	copy(out, messages)

	meta := Meta{ConversationOriginalChars: utf8.RuneCountInString(conversationContext)}

	var blocks []string
	if conversationContext != "" {
		text, truncated := truncateKeepingSuffix(conversationContext, b.maxHistoryChars)
		meta.ConversationTruncated = truncated
		meta.ConversationUsedChars = utf8.RuneCountInString(text)
		blocks = append(blocks, sectionBlock(SectionConversation, conversationHeader+"\n"+text))
		meta.Sections = append(meta.Sections, SectionConversation)
	}
	if searchContext != "" {
		blocks = append(blocks, sectionBlock(SectionSearch, strings.TrimSpace(searchContext)))
		meta.Sections = append(meta.Sections, SectionSearch)
	}
	if searchExecuted {
		blocks = append(blocks, sectionBlock(SectionGuideline, searchGuideline))
		meta.Sections = append(meta.Sections, SectionGuideline)
	}

	if len(blocks) == 0 {
		return out, meta
	}
	combined := strings.Join(blocks, "\n\n")

	systemIdx := -1
	for i, msg := range out {
		if msg.Role == "system" {
			systemIdx = i
			break
		}
	}

	if systemIdx >= 0 {
		content := out[systemIdx].Content
		for _, re := range b.stripPatterns {
			content = re.ReplaceAllString(content, "")
		}
		content = strings.TrimSpace(content)
		if content != "" {
			content = content + "\n\n" + combined
		} else {
			content = combined
		}
		out[systemIdx].Content = content
	} else {
		out = append([]llm.ChatMessage{llm.SystemMessage(combined)}, out...)
		meta.AddedSystem = true
	}

	b.logger.Info("prompt augmented",
		zap.Bool("truncated", meta.ConversationTruncated),
		zap.Int("orig_chars", meta.ConversationOriginalChars),
		zap.Int("used_chars", meta.ConversationUsedChars),
		zap.Strings("sections", meta.Sections),
		zap.Bool("added_system", meta.AddedSystem))
	return out, meta
}

// truncateKeepingSuffix keeps the tail of text within limit runes,
// prefixing the elision marker. Recent content is worth more than old.
func truncateKeepingSuffix(text string, limit int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	keep := limit - utf8.RuneCountInString(elisionMarker)
	if keep < 0 {
		keep = 0
	}
	return elisionMarker + string(runes[len(runes)-keep:]), true
}
