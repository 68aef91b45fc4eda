// Package match filters post titles against an ordered keyword list.
package match

import "strings"

// Matcher performs case-insensitive substring matching. The first keyword in
// configuration order wins.
type Matcher struct {
	keywords []string
	folded   []string
}

// New builds a Matcher. Keywords are trimmed; blanks and case-insensitive
// duplicates are dropped while the first occurrence keeps its position.
func New(keywords []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		folded := strings.ToLower(kw)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		m.keywords = append(m.keywords, kw)
		m.folded = append(m.folded, folded)
	}
	return m
}

// Keywords returns the normalized keyword list.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// Match reports the first keyword contained in title. With no keywords every
// title matches and the keyword is empty.
func (m *Matcher) Match(title string) (string, bool) {
	if len(m.folded) == 0 {
		return "", true
	}
	lower := strings.ToLower(title)
	for i, kw := range m.folded {
		if strings.Contains(lower, kw) {
			return m.keywords[i], true
		}
	}
	return "", false
}
