// Package textproc cleans up transcripts before they are typed.
package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	multiSpace    = regexp.MustCompile(` +`)
	spaceBefore   = regexp.MustCompile(`\s+([.,!?;:])`)
	spaceBeforeCl = regexp.MustCompile(`\s+([)\]"'])`)
	spaceAfterOp  = regexp.MustCompile(`([(\["'])\s+`)
)

func isPunct(r rune) bool {
	return strings.ContainsRune(".,!?;:", r)
}

// Normalize fixes the spacing speech models tend to get wrong: runs of
// spaces, spaces before punctuation, missing spaces after it, and padding
// inside brackets and quotes. Text is NFC-composed first so accents typed
// through the clipboard come out as single code points.
func Normalize(text string) string {
	if text == "" {
		return text
	}
	text = norm.NFC.String(text)
	text = strings.TrimSpace(text)
	text = multiSpace.ReplaceAllString(text, " ")
	text = spaceBefore.ReplaceAllString(text, "$1")
	text = spaceAfterPunct(text)
	text = multiSpace.ReplaceAllString(text, " ")
	text = spaceBeforeCl.ReplaceAllString(text, "$1")
	text = spaceAfterOp.ReplaceAllString(text, "$1")
	return text
}

// spaceAfterPunct inserts a space after punctuation that runs straight into
// the next word. Punctuation between two digits is left alone so "3.14" and
// "10:30" survive.
func spaceAfterPunct(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i, r := range rs {
		b.WriteRune(r)
		if !isPunct(r) || i+1 >= len(rs) {
			continue
		}
		next := rs[i+1]
		if unicode.IsSpace(next) {
			continue
		}
		if i > 0 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(next) {
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}
