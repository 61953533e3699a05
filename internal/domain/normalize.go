package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripDiacritics removes diacritical marks from s (e.g. "Jiří" -> "Jiri").
func stripDiacritics(s string) string {
	result, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return result
}

// SlugifyName derives an Event's URL-safe Slug from its display Name:
// diacritics stripped, lowercased, runs of non-alphanumerics collapsed
// to a single hyphen, leading/trailing hyphens trimmed.
func SlugifyName(name string) string {
	cleaned := strings.ToLower(stripDiacritics(name))

	var b strings.Builder
	prevHyphen := false
	for _, r := range cleaned {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
