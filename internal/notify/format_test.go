package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

func TestFormatTagOnlyAndLinkTemplates(t *testing.T) {
	t.Parallel()

	f := NewFormatter(FormatterConfig{
		DefaultTag: "🌰",
		Rules:      map[string]Rule{"도둑들": {Tag: "🐣"}},
	})
	a := watch.Item{ID: "https://theqoo.net/bl/1", Title: "도둑들 컴백", URL: "https://theqoo.net/bl/1"}
	b := watch.Item{ID: "https://theqoo.net/bl/2", Title: "주한 근황", URL: "https://theqoo.net/bl/2?x=1"}

	msgA := f.Format(a, "도둑들")
	require.Equal(t, "🐣 도둑들 컴백", msgA.Text)
	require.True(t, msgA.DisableLinkPreview)
	require.Equal(t, a, msgA.Item)
	require.Equal(t, "도둑들", msgA.Keyword)

	msgB := f.Format(b, "주한")
	require.Equal(t, "🌰 주한 근황\nhttps://theqoo.net/bl/2?x=1", msgB.Text)
}

func TestFormatRuleKeysAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := NewFormatter(FormatterConfig{
		DefaultTag:      "*",
		Rules:           map[string]Rule{"bts": {Tag: "[B]", IncludeLink: true}},
		TagOnlyKeywords: []string{" Quiet "},
	})
	item := watch.Item{Title: "title", URL: "https://example.com/a/1"}

	require.Equal(t, "[B] title\nhttps://example.com/a/1", f.Format(item, "BTS").Text)
	require.Equal(t, "* title", f.Format(item, "quiet").Text)
	require.Equal(t, "* title\nhttps://example.com/a/1", f.Format(item, "other").Text)
}

func TestFormatWithoutTag(t *testing.T) {
	t.Parallel()

	f := NewFormatter(FormatterConfig{})
	msg := f.Format(watch.Item{Title: "title", URL: "https://example.com/a/1"}, "")
	require.Equal(t, "title\nhttps://example.com/a/1", msg.Text)
}
