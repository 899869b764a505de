package textfold

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ocean Waves", "ocean waves"},
		{"ÉTÉ ÉTERNEL", "été éternel"},
		{"ÖL UND WASSER", "öl und wasser"},
		{"ΚΑΛΗΜΕΡΑ", "καλημερα"},
		{"already lower", "already lower"},
		{"", ""},
	}
	for _, tt := range tests {
		got := Fold(tt.in)
		assert.Equal(t, tt.want, got, "Fold(%q)", tt.in)
		assert.Equal(t, utf8.RuneCountInString(tt.in), utf8.RuneCountInString(got), "rune count of %q", tt.in)
	}
}
