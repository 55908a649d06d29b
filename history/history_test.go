package history

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(userID, name, content string) Entry {
	return Entry{
		UserID:      userID,
		DisplayName: name,
		Content:     content,
		Source:      "channel",
		Timestamp:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreCapacityEviction(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		err := store.Append(ctx, "ch", entry("u", "user", fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
	}

	got, err := store.Entries(ctx, "ch")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Content, "oldest entry evicted first")
	assert.Equal(t, "m4", got[2].Content)
}

func TestMemoryStoreChannelsAreIndependent(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", entry("u", "user", "in-a")))
	require.NoError(t, store.Append(ctx, "b", entry("u", "user", "in-b")))

	got, err := store.Entries(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "in-a", got[0].Content)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "ch", entry("u", "user", "m")))
	require.NoError(t, store.Clear(ctx, "ch"))

	got, err := store.Entries(ctx, "ch")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreEntriesReturnsCopy(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "ch", entry("u", "user", "original")))

	got, err := store.Entries(ctx, "ch")
	require.NoError(t, err)
	got[0].Content = "mutated"

	again, err := store.Entries(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestTranscriptFormat(t *testing.T) {
	entries := []Entry{
		entry("100", "taro", "おはよう"),
		entry("200", "hanako", "こんにちは"),
	}
	got := Transcript(entries, 0)
	assert.Equal(t, "taro(100): おはよう\nhanako(200): こんにちは", got)
}

func TestTranscriptFallsBackToUserID(t *testing.T) {
	got := Transcript([]Entry{entry("100", "", "hi")}, 0)
	assert.Equal(t, "100(100): hi", got)
}

func TestTranscriptBudgetKeepsNewest(t *testing.T) {
	entries := []Entry{
		entry("1", "a", strings.Repeat("x", 50)),
		entry("2", "b", strings.Repeat("y", 50)),
		entry("3", "c", strings.Repeat("z", 50)),
	}
	got := Transcript(entries, 130)

	assert.NotContains(t, got, "x", "oldest line dropped under budget pressure")
	assert.Contains(t, got, "y")
	assert.Contains(t, got, "z")
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "b(2)"), "kept lines stay oldest-first")
}

func TestTranscriptBudgetCountsRunes(t *testing.T) {
	entries := []Entry{
		entry("1", "a", strings.Repeat("あ", 50)),
		entry("2", "b", strings.Repeat("い", 50)),
	}
	// 57 runes per line with the newline; both fit in 120 even though
	// each line is over 150 bytes.
	got := Transcript(entries, 120)

	assert.Contains(t, got, strings.Repeat("あ", 50))
	assert.Contains(t, got, strings.Repeat("い", 50))
}

func TestConversationContextAppendsCurrent(t *testing.T) {
	entries := []Entry{entry("100", "taro", "前の発言")}
	current := entry("200", "hanako", "今の発言")

	got := ConversationContext(entries, current, 0)
	assert.Equal(t, "taro(100): 前の発言\nhanako(200): 今の発言", got)

	got = ConversationContext(nil, current, 0)
	assert.Equal(t, "hanako(200): 今の発言", got)
}
