// Package tokenize implements the path/identifier tokenizer and pinyin
// expander from spec.md §4.C7.
package tokenize

import (
	"strings"
	"unicode"
)

// Tokens splits s into the sequence of indexable terms spec.md §4.C7
// describes: runs of ASCII letters form one term, runs of digits form
// one term, '+' joins adjacent letter runs, every '.' ends the current
// run and is never emitted as a term, every non-ASCII
// non-digit rune is its own term, and a stop-word filter drops
// single-character English terms that aren't digits, symbols, or CJK.
func Tokens(s string) []string {
	s = strings.ToLower(s)
	runes := []rune(s)

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range runes {
		switch {
		case isLetter(r) || r == '+':
			// letters (and the '+' joiner) form their own run, distinct
			// from a preceding digit run
			if cur.Len() > 0 && isDigitRun(cur.String()) {
				flush()
			}
			cur.WriteRune(r)
		case isDigit(r):
			// digits form their own run, distinct from letters
			if cur.Len() > 0 && !isDigitRun(cur.String()) {
				flush()
			}
			cur.WriteRune(r)
		case r == '.':
			// Every dot — final extension separator or an interior one,
			// as in "foo.tar.gz" — simply ends the current run; no
			// literal "." term is ever emitted (matches spec.md's own
			// worked examples: "foo.tar.gz" -> foo, tar, gz and
			// "报告.doc" -> 报, 告, doc, with no "." token in either).
			flush()
		case isASCII(r):
			// any other ASCII punctuation/space ends the current run
			flush()
		default:
			// CJK or other non-ASCII, non-digit rune: one-rune term
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()

	return filterStopWords(tokens)
}

func isDigitRun(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isASCII(r rune) bool { return r < unicode.MaxASCII }

// filterStopWords drops ASCII-letter tokens of length <= 1, keeping
// digits, the '+' symbol joins, and single CJK characters (which are
// already single runes but not ASCII letters, so they pass through).
func filterStopWords(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if len(t) <= 1 && isASCIILetterToken(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isASCIILetterToken(t string) bool {
	for _, r := range t {
		if !isLetter(r) {
			return false
		}
	}
	return len(t) > 0
}
