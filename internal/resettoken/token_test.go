package resettoken

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

const testSecret = "unit-test-secret"

func TestRoundTrip(t *testing.T) {
	subject := id.NewUserID()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token := Build(subject, issued, testSecret)

	parsed, err := Parse(token, 24*time.Hour, issued.Add(time.Hour), testSecret)
	require.NoError(t, err)
	assert.Equal(t, subject, parsed)
}

func TestParseRejections(t *testing.T) {
	subject := id.NewUserID()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := Build(subject, issued, testSecret)

	tests := []struct {
		name   string
		token  string
		maxAge time.Duration
		now    time.Time
	}{
		{"expired", token, time.Hour, issued.Add(2 * time.Hour)},
		{"issued in the future", token, time.Hour, issued.Add(-time.Minute)},
		{"wrong secret", Build(subject, issued, "other-secret"), time.Hour, issued},
		{"not base64", "%%%not-base64%%%", time.Hour, issued},
		{"too few parts", base64.RawURLEncoding.EncodeToString([]byte("a!!b")), time.Hour, issued},
		{"subject not an id", Build(subject, issued, testSecret)[:10], time.Hour, issued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.maxAge, tt.now, testSecret)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestTamperedSignature(t *testing.T) {
	subject := id.NewUserID()
	issued := time.Now().UTC()
	raw, err := base64.RawURLEncoding.DecodeString(Build(subject, issued, testSecret))
	require.NoError(t, err)

	// Flip the last signature character.
	mutated := []byte(string(raw))
	last := len(mutated) - 1
	if mutated[last] == 'a' {
		mutated[last] = 'b'
	} else {
		mutated[last] = 'a'
	}
	tampered := base64.RawURLEncoding.EncodeToString(mutated)

	_, err = Parse(tampered, time.Hour, issued, testSecret)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestExactBoundary(t *testing.T) {
	subject := id.NewUserID()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := Build(subject, issued, testSecret)

	// A token exactly maxAge old is still valid; one second past is not.
	_, err := Parse(token, time.Hour, issued.Add(time.Hour), testSecret)
	assert.NoError(t, err)

	_, err = Parse(token, time.Hour, issued.Add(time.Hour+time.Second), testSecret)
	assert.Error(t, err)
}
