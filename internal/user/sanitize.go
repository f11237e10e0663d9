package user

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameLength bounds the stored display name, in runes.
const MaxDisplayNameLength = 100

// maxUnescapeRounds caps entity decoding for nested encodings like &amp;lt;.
const maxUnescapeRounds = 4

var (
	strictPolicy  = bluemonday.StrictPolicy()
	angleBrackets = strings.NewReplacer("<", "", ">", "")
)

// SanitizeDisplayName strips any markup and surrounding whitespace from a
// display name and truncates it. It returns nil when nothing is left.
//
// Entities are decoded before sanitizing so encoded markup is stripped like
// literal markup. Angle brackets left in the text are dropped.
func SanitizeDisplayName(name string) *string {
	clean := strictPolicy.Sanitize(unescapeAll(name))
	clean = strings.TrimSpace(angleBrackets.Replace(html.UnescapeString(clean)))
	if clean == "" {
		return nil
	}
	if utf8.RuneCountInString(clean) > MaxDisplayNameLength {
		clean = string([]rune(clean)[:MaxDisplayNameLength])
	}
	return &clean
}

func unescapeAll(s string) string {
	for i := 0; i < maxUnescapeRounds; i++ {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}
