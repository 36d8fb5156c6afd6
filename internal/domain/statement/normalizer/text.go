// Package normalizer provides description cleanup, merchant name extraction
// and internal-transfer detection for normalized statement rows.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanDescription trims and collapses internal whitespace. Diacritics are
// kept; this is the human-readable display value.
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripDiacritics removes combining marks ("Débito" -> "Debito")
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsRemover, s)
	if err != nil {
		return s
	}
	return out
}

// FoldForMatch produces the canonical lowercase, diacritic-free form used for
// keyword and pattern comparisons throughout the pipeline.
func FoldForMatch(s string) string {
	return strings.ToLower(StripDiacritics(CleanDescription(s)))
}

// TitleCase converts a string to simple per-word title case
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
