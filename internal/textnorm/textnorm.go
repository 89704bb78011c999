// Package textnorm normalizes user text for pattern matching and index
// lookups against an ASCII-normalized corpus.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripper decomposes to NFD, removes combining marks, and recomposes.
// transform.Transformer instances are stateless here and safe to share.
var stripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ASCII lowercases s, trims surrounding space, and strips diacritics
// ("Matrícula " → "matricula"). Input that fails to transform is returned
// lowercased and trimmed; lookups degrade, they do not fail.
func ASCII(s string) string {
	out, _, err := transform.String(stripper, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
