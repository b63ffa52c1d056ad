package chunker

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Clean reduces text to the strictly-filtered form whose character count the
// page matcher compares: NFKC normalized, diacritics/tatweel/zero-width/
// control characters stripped, then only Arabic letters, Arabic-Indic digits,
// ASCII letters, and ASCII digits kept, with no whitespace. Idempotent.
func Clean(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanLen returns len([]rune(Clean(text))) without building the string twice.
func CleanLen(text string) int {
	text = norm.NFKC.String(text)
	n := 0
	for _, r := range text {
		if keepRune(r) {
			n++
		}
	}
	return n
}

func keepRune(r rune) bool {
	switch {
	case r >= 0x0621 && r <= 0x064A: // Arabic letters
		return true
	case r >= 0x0660 && r <= 0x0669: // Arabic-Indic digits
		return true
	case r >= 0x06F0 && r <= 0x06F9: // Extended Arabic-Indic digits
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	// Everything else is dropped: diacritics (U+064B–U+065F, U+0610–U+061A,
	// U+06D6–U+06ED), tatweel, zero-width and direction marks, controls,
	// punctuation, and all whitespace.
	return false
}
