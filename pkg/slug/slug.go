// Package slug derives filesystem- and URL-safe object names from article titles.
package slug

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is returned when nothing usable survives sanitizing.
const Fallback = "episode"

var (
	nonWord    = regexp.MustCompile(`[^\w\s-]+`)
	separators = regexp.MustCompile(`[\s_-]+`)
)

// StripDiacritics removes combining marks, e.g. "tűrő" becomes "turo".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Make lowercases s, strips diacritics and punctuation, joins words with "-"
// and percent-encodes whatever is left. maxLen <= 0 disables truncation.
func Make(s string, maxLen int) string {
	s = StripDiacritics(s)
	s = nonWord.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.ToLower(strings.Trim(s, "-"))
	if maxLen > 0 && len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return Fallback
	}
	return url.PathEscape(s)
}
