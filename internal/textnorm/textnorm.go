// Package textnorm provides the text primitives shared by the translator and
// the grounding matcher: Unicode normalization, Vietnamese diacritic folding,
// word splitting and an insertion-ordered string set.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, composes it to NFC, collapses runs of whitespace
// and trims it. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns the normalized form of s with every diacritic removed, so that
// "Máy Tính" and "may tinh" compare equal. The Vietnamese đ is mapped to d.
func Fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			switch r {
			case 'đ':
				return 'd'
			case 'Đ':
				return 'D'
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return Normalize(out)
}

// IsUnaccented reports whether s carries no diacritics.
func IsUnaccented(s string) bool {
	return Fold(s) == Normalize(s)
}

// isWordRune reports whether r belongs to a word.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

// Words splits s into its words. Anything that is not a letter, a number or a
// combining mark separates words.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

// TrimToken strips the non-word runes surrounding a token.
func TrimToken(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return !isWordRune(r) })
}

// RuneLen is the number of runes in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsNumeric reports whether s is a pure number, optionally grouped with
// dots or commas ("20", "20.000", "1,5").
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	prevDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			prevDigit = true
		case (r == '.' || r == ',') && prevDigit:
			prevDigit = false
		default:
			return false
		}
	}
	return prevDigit
}

// HasWordPrefix reports whether kw occurs in text starting at a word
// boundary, either as a whole word or as the prefix of a longer word.
func HasWordPrefix(text, kw string) bool {
	if kw == "" {
		return false
	}
	from := 0
	for {
		idx := strings.Index(text[from:], kw)
		if idx < 0 {
			return false
		}
		at := from + idx
		if at == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:at])
		if !isWordRune(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[at:])
		from = at + size
	}
}
