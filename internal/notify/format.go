package notify

import (
	"strings"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Rule selects the template used for a keyword.
type Rule struct {
	Tag         string `mapstructure:"tag"`
	IncludeLink bool   `mapstructure:"include_link"`
}

// FormatterConfig holds the message templates.
type FormatterConfig struct {
	// DefaultTag prefixes messages for keywords without a rule.
	DefaultTag string
	// Rules maps a keyword (case-insensitive) to its template.
	Rules map[string]Rule
	// TagOnlyKeywords use DefaultTag without the link.
	TagOnlyKeywords []string
}

// Formatter renders items into messages.
type Formatter struct {
	defaultTag string
	rules      map[string]Rule
}

// NewFormatter builds a Formatter. Rule keys are folded to lower case, which
// also matches how viper delivers map keys.
func NewFormatter(cfg FormatterConfig) *Formatter {
	f := &Formatter{defaultTag: cfg.DefaultTag, rules: make(map[string]Rule)}
	for _, kw := range cfg.TagOnlyKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			f.rules[kw] = Rule{Tag: cfg.DefaultTag}
		}
	}
	for kw, r := range cfg.Rules {
		f.rules[strings.ToLower(strings.TrimSpace(kw))] = r
	}
	return f
}

// Rule returns the template for keyword.
func (f *Formatter) Rule(keyword string) Rule {
	if r, ok := f.rules[strings.ToLower(keyword)]; ok {
		return r
	}
	return Rule{Tag: f.defaultTag, IncludeLink: true}
}

// Format renders "<tag> <title>" and, when the rule asks for it, the link on
// a second line. Link previews are always disabled.
func (f *Formatter) Format(item watch.Item, keyword string) watch.Message {
	r := f.Rule(keyword)
	text := item.Title
	if r.Tag != "" {
		text = r.Tag + " " + text
	}
	if r.IncludeLink && item.URL != "" {
		text += "\n" + item.URL
	}
	return watch.Message{
		Text:               text,
		DisableLinkPreview: true,
		Item:               item,
		Keyword:            keyword,
	}
}
