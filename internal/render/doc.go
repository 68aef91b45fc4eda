// Package render holds the document renderer adapters. The headless
// subpackage drives Chrome through chromedp and can wait out an interstitial
// challenge; the static subpackage issues a plain HTTP GET through colly.
package render

import "time"

// Shared defaults for both adapters.
const (
	DefaultNavTimeout     = 45 * time.Second
	DefaultContentTimeout = 10 * time.Second
	DefaultAcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	DefaultChallenge      = "잠시만 기다리십시오"
)

// DefaultWaitSelectors mark a rendered board list.
func DefaultWaitSelectors() []string {
	return []string{"table.bd_lst", "td.title", ".bd_lst_wrp"}
}
