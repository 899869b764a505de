// Package textfold holds the one case-folding rule search uses, both in SQL
// (through the poit_fold function the sqlite repository registers) and when
// annotating results in Go.
package textfold

import (
	"strings"
	"unicode"
)

// Fold lowers s one code point at a time. unicode.ToLower maps a rune to a
// single rune, so the folded string has the same rune count as s and rune
// offsets found in it are valid in s.
func Fold(s string) string {
	return strings.Map(unicode.ToLower, s)
}
