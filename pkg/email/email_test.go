package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		first string
		last  string
	}{
		{"ana.pop@ong.ro", "Ana", "Pop"},
		{"ana_maria_pop@ong.ro", "Ana", "Pop"},
		{"ion-dan+contact@ong.ro", "Ion", "Contact"},
		{"office@ong.ro", "Office", "User"},
		{"...", "User", "User"},
		{"", "User", "User"},
		{"ștefan.ionescu@ong.ro", "Ștefan", "Ionescu"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			first, last := DeriveNameFromEmail(tt.email)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}
