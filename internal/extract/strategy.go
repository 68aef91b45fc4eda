package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is a raw, uncleaned post reference found by a strategy.
type Candidate struct {
	Href       string
	TitleHTML  string
	PrefixHTML string
}

// Strategy is a selector pattern plus the mapping from a matched row to a
// candidate. Strategies are pure functions of the parsed document.
type Strategy struct {
	Name string
	// Rows selects one container per candidate.
	Rows string
	// Title selects the title anchor inside a row. Empty means the row is the
	// anchor itself.
	Title string
	// Prefix optionally selects a badge label inside a row.
	Prefix string
	// HrefPattern, when set, filters candidates by their raw link.
	HrefPattern *regexp.Regexp
}

// postPath matches board post links such as /bl/3456789 with optional
// query or fragment.
var postPath = regexp.MustCompile(`^(?:https?://[^/?#]+)?/[A-Za-z0-9_-]+/\d+(?:[/?#].*)?$`)

// DefaultStrategies returns the built-in chain for Rhymix/XE style boards.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:   "board-table",
			Rows:   "table.bd_lst tbody tr:not(.notice)",
			Title:  "td.title a[href]:not(.preface):not(.replyNum)",
			Prefix: "td.title .preface",
		},
		{
			Name:   "title-cell",
			Rows:   "td.title",
			Title:  "a[href]:not(.preface):not(.replyNum)",
			Prefix: ".preface",
		},
		{
			Name:        "post-anchor",
			Rows:        "a[href]:not(.preface):not(.replyNum)",
			HrefPattern: postPath,
		},
	}
}

// Candidates runs the strategy against a parsed document.
func (s Strategy) Candidates(doc *goquery.Document) []Candidate {
	var out []Candidate
	doc.Find(s.Rows).Each(func(_ int, row *goquery.Selection) {
		anchor := row
		if s.Title != "" {
			anchor = row.Find(s.Title).First()
		}
		if anchor.Length() == 0 {
			return
		}
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		if s.HrefPattern != nil && !s.HrefPattern.MatchString(href) {
			return
		}
		titleHTML, err := anchor.Html()
		if err != nil {
			return
		}
		c := Candidate{Href: href, TitleHTML: titleHTML}
		if s.Prefix != "" {
			if prefix := row.Find(s.Prefix).First(); prefix.Length() > 0 {
				c.PrefixHTML, _ = prefix.Html()
			}
		}
		out = append(out, c)
	})
	return out
}
