package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short message unchanged", "Hi", "Hi"},
		{"exactly at the limit", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"one over the limit", strings.Repeat("a", 31), strings.Repeat("a", 30) + "..."},
		{
			"long message truncated",
			"Explain recursion in simple terms please!",
			"Explain recursion in simple te...",
		},
		{"multibyte runes counted as one", strings.Repeat("é", 31), strings.Repeat("é", 30) + "..."},
		{"whitespace trimmed first", "   padded question   ", "padded question"},
		{"empty content", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.content))
		})
	}
}
