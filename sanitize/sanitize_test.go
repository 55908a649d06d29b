package sanitize

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanIdentityWithoutSearch(t *testing.T) {
	s := New(Options{}, nil)
	reply := "現在、私はインターネットからリアルタイムで取得できません。"
	assert.Equal(t, reply, s.Clean(reply, false))
}

func TestCleanIdentityOnEmptyReply(t *testing.T) {
	s := New(Options{}, nil)
	assert.Equal(t, "", s.Clean("", true))
}

func TestCleanRemovesJapaneseDisclaimers(t *testing.T) {
	s := New(Options{}, nil)

	tests := []struct {
		name  string
		reply string
	}{
		{"realtime fetch denial", "現在、私はインターネットからリアルタイムで最新ニュースを取得できません。ただし検索結果によると株価は上昇しています。"},
		{"realtime access denial", "リアルタイムのアクセスできないため限定的ですが、検索結果によると株価は上昇しています。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Clean(tt.reply, true)
			assert.NotContains(t, got, "リアルタイム")
			assert.Contains(t, got, "株価は上昇")
		})
	}
}

func TestCleanRemovesYearAnchoredCutoff(t *testing.T) {
	s := New(Options{}, nil)
	year := time.Now().Year()

	reply := fmt.Sprintf("私の知識は%d年までです。それでも一般論としてお答えします。", year-1)
	got := s.Clean(reply, true)
	assert.NotContains(t, got, "知識")
	assert.Contains(t, got, "一般論としてお答えします")
}

func TestCleanEnglishToggle(t *testing.T) {
	reply := "I don't have real-time access. But the results above say otherwise."

	off := New(Options{EnableEnglish: false}, nil)
	assert.Contains(t, off.Clean(reply, true), "real-time")

	on := New(Options{EnableEnglish: true}, nil)
	got := on.Clean(reply, true)
	assert.NotContains(t, got, "real-time access")
	assert.Contains(t, got, "results above")
}

func TestCleanExtraPatterns(t *testing.T) {
	s := New(Options{ExtraPatterns: []string{`持っていません`}}, nil)
	got := s.Clean("その情報は持っていませんが、検索結果は上の通りです。", true)
	assert.NotContains(t, got, "持っていません")
}

func TestCleanInvalidExtraPatternSkipped(t *testing.T) {
	valid := New(Options{}, nil)
	s := New(Options{ExtraPatterns: []string{`([`}}, nil)
	assert.Len(t, s.patterns, len(valid.patterns), "invalid pattern does not compile in")
}

func TestCleanCollapsesBlankLines(t *testing.T) {
	s := New(Options{}, nil)
	reply := "最初の段落。\n\n\n\nリアルタイムにアクセスできないので、\n\n\n最後の段落。"
	got := s.Clean(reply, true)
	assert.NotContains(t, got, "\n\n\n")
}

func TestCleanFallbackWhenEmptied(t *testing.T) {
	s := New(Options{}, nil)
	got := s.Clean("現在、私はインターネットからリアルタイムで最新ニュースを取得できません", true)
	assert.Equal(t, fallbackText, got)
}

func TestCleanUntouchedReplyTrimmedOnly(t *testing.T) {
	s := New(Options{}, nil)
	reply := "  役に立つ返信です。  "
	assert.Equal(t, strings.TrimSpace(reply), s.Clean(reply, true))
}
