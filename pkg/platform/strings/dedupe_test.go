package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "case and whitespace duplicates collapse",
			input: []string{"  Ana@verde.example ", "ana@verde.example", "ANA@VERDE.EXAMPLE"},
			want:  []string{"ana@verde.example"},
		},
		{
			name:  "order of first occurrence kept",
			input: []string{"b@x.ro", "a@x.ro", "B@x.ro"},
			want:  []string{"b@x.ro", "a@x.ro"},
		},
		{
			name:  "empties dropped",
			input: []string{"", "  ", "a@x.ro"},
			want:  []string{"a@x.ro"},
		},
		{
			name:  "nil stays nil",
			input: nil,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrimLower(tt.input))
		})
	}
}
