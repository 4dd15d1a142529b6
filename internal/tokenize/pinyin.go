package tokenize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

var pinyinArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Style = pinyin.Normal // tone marks stripped, matches spec.md's "stripped of tone marks"
	a.Fallback = func(r rune, a pinyin.Args) []string {
		return []string{string(r)}
	}
	return a
}()

// Expansion holds the pinyin variants spec.md §4.C7 requires for a
// sentence containing CJK characters.
type Expansion struct {
	Spaced        string // pinyin readings separated by spaces, ASCII/CJK boundaries spaced too
	Acronym       string // first letter of each pinyin reading
	Concatenated  string // all pinyin readings joined with no spaces
	MixedAcronym  string // whole-string acronym mixed with ASCII characters as they appeared
}

// Expand implements the pinyin expansion algorithm from spec.md §4.C7:
// every CJK character with a dictionary entry is replaced by its first
// reading (tone marks stripped, ü -> v), accumulated with spacing across
// ASCII/CJK boundaries, plus the acronym, concatenation, and mixed-
// acronym variants.
func Expand(sentence string) Expansion {
	var spaced, concatenated, acronym, mixed strings.Builder

	// prevKind tracks whether the last emitted rune/reading belonged to
	// a CJK character or an ASCII run, so a space is inserted only at
	// the boundary between the two kinds — not between every pair of
	// ASCII letters.
	const (
		kindNone = iota
		kindASCII
		kindCJK
	)
	prevKind := kindNone

	for _, r := range sentence {
		if isCJK(r) {
			readings := pinyin.SinglePinyin(r, pinyinArgs)
			reading := string(r)
			if len(readings) > 0 && readings[0] != "" {
				reading = foldU(readings[0])
			}
			if prevKind != kindNone {
				spaced.WriteByte(' ')
			}
			spaced.WriteString(reading)
			concatenated.WriteString(reading)
			if len(reading) > 0 {
				acronym.WriteRune([]rune(reading)[0])
				mixed.WriteRune([]rune(reading)[0])
			}
			prevKind = kindCJK
			continue
		}

		if unicode.IsSpace(r) {
			prevKind = kindNone
			continue
		}
		if prevKind == kindCJK {
			spaced.WriteByte(' ')
		}
		spaced.WriteRune(r)
		concatenated.WriteRune(r)
		mixed.WriteRune(r)
		prevKind = kindASCII
	}

	return Expansion{
		Spaced:       spaced.String(),
		Acronym:      acronym.String(),
		Concatenated: concatenated.String(),
		MixedAcronym: mixed.String(),
	}
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// foldU replaces 'ü' with 'v', per spec.md §4.C7.
func foldU(s string) string {
	return strings.ReplaceAll(s, "ü", "v")
}
