package sheet

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims s, composes it to NFC and upper-cases it. Identifiers
// for tables, columns and the key all pass through here so they compare
// equal however the workbook or the command line spelled them.
func NormalizeName(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return ""
	}
	return cases.Upper(language.Und).String(s)
}

// CleanPath removes bidi control marks (U+202A LEFT-TO-RIGHT EMBEDDING and
// friends) that Windows "copy as path" dialogs prepend, plus surrounding
// quotes and blanks.
func CleanPath(p string) string {
	t := transform.Chain(runes.Remove(runes.In(unicode.Bidi_Control)), norm.NFC)
	out, _, err := transform.String(t, p)
	if err != nil {
		out = p
	}
	return strings.Trim(strings.TrimSpace(out), `"'`)
}
