// Package match normalizes and fuzzy-matches track titles against search
// candidates, and applies the forbidden-word denylist.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanTitle normalizes a title for matching purposes.
// Lowercases, removes accents and punctuation, and collapses whitespace.
func CleanTitle(title string) string {
	s := strings.ToLower(title)

	s = removeAccents(s)

	// Normalize punctuation
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, ".", " ")

	// Remove other punctuation
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	// Collapse whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// ContainsForbiddenWord reports whether title contains any of the denylist
// words. Matching is case-insensitive on whole words, so a denylist entry
// "live" does not reject "Alive".
func ContainsForbiddenWord(title string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	fields := strings.Fields(CleanTitle(title))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	for _, w := range words {
		if set[strings.ToLower(strings.TrimSpace(w))] {
			return true
		}
	}
	return false
}

// SanitizeFilename keeps letters, digits, spaces, dashes and underscores,
// matching what the library manager accepts in directory and file names.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
