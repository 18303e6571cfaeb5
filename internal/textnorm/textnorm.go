// Package textnorm canonicalizes raw page text into a token-comparable form.
// Every matcher in the pipeline (rules, seller filters, URL labels) compares
// normalized strings only.
package textnorm

import (
	"strings"
	"unicode"
)

// GiftGlyph is the gift-icon emoji some marketing labels carry instead of the
// word "подарок". Normalize folds it into that word so token matching sees it.
const GiftGlyph = "🎁"

// GiftWord is the normalized token the glyph folds into.
const GiftWord = "подарок"

// Normalize lowercases s, repairs the ё/е spelling split, folds the gift glyph
// into its word form, replaces every non-word run with a single space and trims.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.ReplaceAll(s, GiftGlyph, GiftWord)

	var b strings.Builder
	b.Grow(len(s))
	space := true // collapse runs and drop leading spaces
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokens splits a normalized string into its tokens.
func Tokens(norm string) []string {
	return strings.Fields(norm)
}

// TokenSet returns the tokens of a normalized string as a set.
func TokenSet(norm string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(norm) {
		set[t] = struct{}{}
	}
	return set
}
