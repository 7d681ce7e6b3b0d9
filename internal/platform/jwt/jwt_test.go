package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "agora/pkg/domain-errors"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := NewService("round-trip-secret", "agora")
	userID := uuid.New()
	orgID := uuid.NewString()

	token, err := svc.Generate(userID, orgID, []string{"electors", "committee"}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, orgID, claims.OrgID)
	assert.Equal(t, []string{"electors", "committee"}, claims.Groups)
	assert.Equal(t, "agora", claims.Issuer)
}

func TestValidateRejections(t *testing.T) {
	svc := NewService("round-trip-secret", "agora")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.Generate(uuid.New(), "", nil, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("different-secret", "agora")
		token, err := other.Generate(uuid.New(), "", nil, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.jwt")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.ValidateToken("")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})
}
