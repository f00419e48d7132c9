// Package text provides shared text processing utilities.
// This avoids duplication between the normalizer, the ranker and suggestions.
package text

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
	"golang.org/x/text/unicode/norm"
)

// htmlTagRe matches HTML tags like <a>, </p>, <div class="foo">
var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// htmlEntityRe matches HTML entities like &amp; &#39;
var htmlEntityRe = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)

// Stopwords are common words dropped from multi-word queries.
// They match almost every description and carry no ranking signal.
var Stopwords = map[string]struct{}{
	"the": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {},
	"in": {}, "for": {}, "with": {}, "on": {}, "at": {}, "by": {},
	"from": {}, "as": {}, "into": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"it": {}, "its": {}, "this": {}, "that": {},
}

// StripHTML removes HTML tags and entities from text.
// Converts "<a href='x'>link</a> &amp; more" to "link & more"
func StripHTML(text string) string {
	text = htmlTagRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&#8217;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	return htmlEntityRe.ReplaceAllString(text, "")
}

// Fold applies NFKC normalization and lower-cases the result, so that
// full-width and ligature forms compare equal to their plain spelling.
func Fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Tokens folds s and splits it on anything that isn't a letter or digit.
//
// Example: "Beta Storm - FitGirl Repacks" → ["beta", "storm", "fitgirl", "repacks"]
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// QueryTokens tokenizes a search query. Tokens shorter than minLen runes are
// dropped, and stopwords are dropped unless nothing else would remain.
func QueryTokens(q string, minLen int) []string {
	raw := Tokens(q)
	out := make([]string, 0, len(raw))
	var stops []string
	for _, t := range raw {
		if len([]rune(t)) < minLen {
			continue
		}
		if _, ok := Stopwords[t]; ok {
			stops = append(stops, t)
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return stops
	}
	return out
}

// Stem reduces an English word to its porter2 stem. Tokens with non-ASCII
// letters are returned unchanged; the stemmer only handles English.
func Stem(token string) string {
	for _, r := range token {
		if r > unicode.MaxASCII {
			return token
		}
	}
	return porter2.Stem(token)
}

// StripSuffix removes suffix from the end of s, case-insensitively and as
// many times as it repeats, trimming whitespace around each cut.
func StripSuffix(s, suffix string) string {
	s = strings.TrimSpace(s)
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return s
	}
	for len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		s = strings.TrimSpace(s[:len(s)-len(suffix)])
	}
	return s
}

// NormalizeTitle lower-cases a display title and strips the site-branding
// suffix. It is idempotent: NormalizeTitle(NormalizeTitle(t)) == NormalizeTitle(t).
func NormalizeTitle(title, suffix string) string {
	return strings.TrimSpace(strings.ToLower(StripSuffix(title, suffix)))
}

// StripBoilerplate removes every match of phrase from a query and trims it.
// A nil phrase leaves the query untouched apart from trimming.
func StripBoilerplate(q string, phrase *regexp.Regexp) string {
	if phrase != nil {
		q = phrase.ReplaceAllString(q, " ")
	}
	return strings.Join(strings.Fields(q), " ")
}
