package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agora/pkg/domain"
)

func TestGrantLookup(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	owner := id.NewUserID()
	orgID := id.NewOrgID().String()

	require.NoError(t, store.Put(ctx, Grant{
		Subject:    UserSubject(owner),
		ObjectType: ObjectOrganization,
		ObjectID:   orgID,
		Capability: CapChange,
	}))
	require.NoError(t, store.Put(ctx, Grant{
		Subject:    GroupSubject("staff"),
		ObjectType: ObjectOrganization,
		ObjectID:   orgID,
		Capability: CapApprove,
	}))

	t.Run("direct user grant", func(t *testing.T) {
		ok, err := store.Has(ctx, owner, nil, ObjectOrganization, orgID, CapChange)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("capability is not implied", func(t *testing.T) {
		ok, err := store.Has(ctx, owner, nil, ObjectOrganization, orgID, CapDelete)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("group grant reaches members", func(t *testing.T) {
		stranger := id.NewUserID()
		ok, err := store.Has(ctx, stranger, []string{"staff"}, ObjectOrganization, orgID, CapApprove)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Has(ctx, stranger, []string{"ngo"}, ObjectOrganization, orgID, CapApprove)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other object untouched", func(t *testing.T) {
		ok, err := store.Has(ctx, owner, nil, ObjectOrganization, id.NewOrgID().String(), CapChange)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("revoke clears every grant on the object", func(t *testing.T) {
		require.NoError(t, store.RevokeObject(ctx, ObjectOrganization, orgID))
		ok, err := store.Has(ctx, owner, []string{"staff"}, ObjectOrganization, orgID, CapChange)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
