// Package textnorm provides text normalization utilities for keyword matching.
// This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases the input, strips diacritical marks and punctuation,
// and collapses runs of whitespace to a single space. Two texts that differ
// only in accents, case or punctuation normalize to the same string.
func Normalize(input string) string {
	stripped, _, err := transform.String(stripMarks, input)
	if err != nil {
		stripped = input
	}

	var b strings.Builder
	b.Grow(len(stripped))
	lastSpace := true
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// CountOccurrences counts non-overlapping occurrences of the normalized
// needle inside the normalized haystack. An empty needle never matches.
func CountOccurrences(haystack, needle string) int {
	n := Normalize(needle)
	if n == "" {
		return 0
	}
	return strings.Count(Normalize(haystack), n)
}

// ParseMoney extracts a monetary amount from free-form text. It tolerates
// currency symbols and both decimal conventions ("1.234,56" and "1,234.56").
// Returns false when no usable number is present.
func ParseMoney(input string) (float64, bool) {
	var b strings.Builder
	for _, r := range input {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	raw := strings.Trim(b.String(), ".,")
	if raw == "" {
		return 0, false
	}

	lastDot := strings.LastIndexByte(raw, '.')
	lastComma := strings.LastIndexByte(raw, ',')

	stripSeps := func(s string) string {
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", "")
	}

	switch {
	case lastComma > lastDot:
		// comma is the decimal separator, dots group thousands
		raw = stripSeps(raw[:lastComma]) + "." + stripSeps(raw[lastComma+1:])
	case lastDot > lastComma:
		intPart := stripSeps(raw[:lastDot])
		fracPart := raw[lastDot+1:]
		if len(fracPart) == 3 && lastComma == -1 {
			// 1.234 and 1.234.567 style grouping, no decimals
			raw = intPart + fracPart
		} else {
			raw = intPart + "." + fracPart
		}
	default:
		raw = stripSeps(raw)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
