package extract

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	// Only the fixed entity set is decoded. The numeric forms are what the
	// HTML serializer emits for the same characters.
	entityReplacer = strings.NewReplacer(
		"&quot;", `"`, "&#34;", `"`,
		"&#39;", "'",
		"&amp;", "&", "&#38;", "&",
		"&lt;", "<", "&#60;", "<",
		"&gt;", ">", "&#62;", ">",
		"&nbsp;", " ", "&#160;", " ",
	)
)

// CleanTitle strips embedded markup, decodes the fixed entity set, collapses
// whitespace, and trims.
func CleanTitle(raw string) string {
	s := stripPolicy.Sanitize(raw)
	s = entityReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Canonicalize resolves href against base and returns the canonical identity
// (query and fragment removed) plus the absolute link (fragment removed).
func Canonicalize(base *url.URL, href string) (id string, link string, ok bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", "", false
	}
	if abs.Host == "" {
		return "", "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	link = abs.String()

	canonical := *abs
	canonical.RawQuery = ""
	canonical.ForceQuery = false
	return canonical.String(), link, true
}
