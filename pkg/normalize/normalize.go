// Package normalize reduces free text to the canonical form used for keyword
// matching: decomposed, stripped of diacritics, lower-cased, with every run of
// non letter/digit runes collapsed into a single space.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token is a single word of normalized text and its byte offset in it.
type Token struct {
	Value  string
	Offset int
}

// Text returns the normalized form of s.
func Text(s string) string {
	// transformers carry state, build a fresh chain per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))

	pendingSpace := false
	for _, r := range decomposed {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// Tokens splits already normalized text into words.
func Tokens(normalized string) []Token {
	list := make([]Token, 0, strings.Count(normalized, " ")+1)
	start := -1
	for i := 0; i < len(normalized); i++ {
		if normalized[i] == ' ' {
			if start >= 0 {
				list = append(list, Token{Value: normalized[start:i], Offset: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		list = append(list, Token{Value: normalized[start:], Offset: start})
	}
	return list
}

// Words returns the values of the tokens of normalized text.
func Words(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}
