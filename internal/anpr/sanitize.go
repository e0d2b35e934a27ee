package anpr

import (
	"strings"
	"unicode"
)

// Sanitize keeps the letters and digits of text, in order, and drops
// everything else. Letters and digits are judged by Unicode category, so
// non-Latin plate characters survive.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isAlphanumeric(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
