package match

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchFirstKeywordWins(t *testing.T) {
	t.Parallel()

	m := New([]string{"도둑들", "주한"})

	kw, ok := m.Match("도둑들 주한 컴백")
	require.True(t, ok)
	require.Equal(t, "도둑들", kw)

	kw, ok = m.Match("[잡담] 주한 근황")
	require.True(t, ok)
	require.Equal(t, "주한", kw)

	_, ok = m.Match("아무 상관 없는 글")
	require.False(t, ok)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	m := New([]string{"BTS"})
	kw, ok := m.Match("new bts teaser")
	require.True(t, ok)
	require.Equal(t, "BTS", kw)

	m = New([]string{"teaser"})
	_, ok = m.Match("NEW TEASER")
	require.True(t, ok)
}

func TestNewNormalizesKeywords(t *testing.T) {
	t.Parallel()

	m := New([]string{" 주한 ", "", "   ", "Foo", "foo", "주한", "bar"})
	require.Equal(t, []string{"주한", "Foo", "bar"}, m.Keywords())
}

func TestEmptyKeywordListMatchesEverything(t *testing.T) {
	t.Parallel()

	for _, m := range []*Matcher{New(nil), New([]string{" ", ""})} {
		kw, ok := m.Match("anything")
		require.True(t, ok)
		require.Empty(t, kw)
	}
}
