// Package history keeps bounded per-channel conversation history and
// renders it into a textual transcript for prompt injection.
//
// Information Hiding:
// - Ring-buffer eviction hidden behind Append/Entries
// - Transcript trimming policy (newest entries win the char budget)

package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultCapacity is the per-channel entry limit.
const DefaultCapacity = 30

// DefaultTranscriptChars bounds the rendered transcript length.
const DefaultTranscriptChars = 2000

// Entry is one recorded conversation turn.
type Entry struct {
	UserID      string
	DisplayName string
	Content     string
	Source      string
	Timestamp   time.Time
}

// Store is the per-channel history contract. Implementations are safe
// for concurrent use.
type Store interface {
	// Append records an entry for the channel, evicting the oldest
	// entry when the channel is at capacity.
	Append(ctx context.Context, channelID string, entry Entry) error

	// Entries returns the channel's entries oldest-first. The returned
	// slice is a copy.
	Entries(ctx context.Context, channelID string) ([]Entry, error)

	// Clear removes all entries for the channel.
	Clear(ctx context.Context, channelID string) error
}

// MemoryStore keeps history in per-channel in-memory ring buffers.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	channels map[string][]Entry
}

// NewMemoryStore creates a store with the given per-channel capacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		channels: make(map[string][]Entry),
	}
}

// Append records an entry, evicting the oldest at capacity.
func (s *MemoryStore) Append(ctx context.Context, channelID string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.channels[channelID]
	buf = append(buf, entry)
	if len(buf) > s.capacity {
		buf = buf[len(buf)-s.capacity:]
	}
	s.channels[channelID] = buf
	return nil
}

// Entries returns a copy of the channel's entries, oldest-first.
func (s *MemoryStore) Entries(ctx context.Context, channelID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.channels[channelID]
	out := make([]Entry, len(buf))
	copy(out, buf)
	return out, nil
}

// Clear removes all entries for the channel.
func (s *MemoryStore) Clear(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
	return nil
}

var _ Store = (*MemoryStore)(nil)

// formatLine renders one transcript line.
func formatLine(e Entry) string {
	name := e.DisplayName
	if name == "" {
		name = e.UserID
	}
	return fmt.Sprintf("%s(%s): %s", name, e.UserID, e.Content)
}

// Transcript renders entries as "name(id): content" lines within the
// char budget. Trimming walks newest-first so recent turns survive, but
// the returned text stays oldest-first.
func Transcript(entries []Entry, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultTranscriptChars
	}
	var kept []string
	total := 0
	for i := len(entries) - 1; i >= 0; i-- {
		line := formatLine(entries[i])
		cost := utf8.RuneCountInString(line) + 1 // newline
		if total+cost > maxChars {
			break
		}
		kept = append(kept, line)
		total += cost
	}
	// kept is newest-first; reverse back to chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}

// ConversationContext renders the channel transcript with the current
// message appended as the final line.
func ConversationContext(entries []Entry, current Entry, maxChars int) string {
	transcript := Transcript(entries, maxChars)
	line := formatLine(current)
	if transcript == "" {
		return line
	}
	return transcript + "\n" + line
}
