// Package llm provides shared data models for LLM providers.
package llm

import "time"

// SegmentType identifies the kind of a message segment.
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentImageURL SegmentType = "image_url"
)

// Segment is a typed piece of multi-modal message content.
type Segment struct {
	Type     SegmentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
}

// ChatMessage represents a chat message with role and content.
// Content is plain text unless Segments is set, in which case the
// segment list is the authoritative content (vision-style input).
type ChatMessage struct {
	Role      string    `json:"role"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	Segments  []Segment `json:"segments,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Text returns the textual content of the message. Segment lists are
// flattened; image segments contribute a placeholder token.
func (m ChatMessage) Text() string {
	if len(m.Segments) == 0 {
		return m.Content
	}
	out := ""
	for _, s := range m.Segments {
		switch s.Type {
		case SegmentText:
			if out != "" {
				out += "\n"
			}
			out += s.Text
		case SegmentImageURL:
			if out != "" {
				out += "\n"
			}
			out += "[image]"
		}
	}
	return out
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// EstimateTokens approximates the prompt token count of a message list
// using the 4-chars-per-token heuristic. Image segments cost a flat 20.
func EstimateTokens(messages []ChatMessage) int {
	chars := 0
	for _, m := range messages {
		if len(m.Segments) > 0 {
			for _, s := range m.Segments {
				switch s.Type {
				case SegmentText:
					chars += len(s.Text)
				case SegmentImageURL:
					chars += 20
				}
			}
			continue
		}
		chars += len(m.Content)
	}
	return chars / 4
}
