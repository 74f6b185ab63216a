package builder

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// payeeCleaner strips combining marks so "Café Río" and "Cafe Rio" land on
// the same payee history bucket.
var payeeCleaner = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizePayee canonicalizes payee text for history matching: combining
// marks removed, whitespace collapsed, edges trimmed. Case is preserved
// for display.
func NormalizePayee(s string) string {
	cleaned, _, err := transform.String(payeeCleaner, s)
	if err != nil {
		cleaned = s
	}
	return strings.Join(strings.Fields(cleaned), " ")
}
