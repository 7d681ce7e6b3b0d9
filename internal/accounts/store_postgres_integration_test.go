//go:build integration

package accounts_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agora/internal/accounts"
	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/testutil/containers"
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    active        BOOLEAN NOT NULL DEFAULT TRUE,
    org_id        UUID,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));
CREATE TABLE IF NOT EXISTS group_members (
    group_name TEXT NOT NULL,
    user_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    PRIMARY KEY (group_name, user_id)
);`

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *accounts.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.ApplySchema(context.Background(), accountsSchema))
	s.store = accounts.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "group_members", "users")
	s.Require().NoError(err)
}

func newTestUser(email string) accounts.User {
	return accounts.User{
		ID:           id.NewUserID(),
		Email:        email,
		PasswordHash: "$2a$10$test",
		Active:       true,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	u := newTestUser("ana@verde.example")
	u.FirstName = "Ana"
	u.LastName = "Pop"
	s.Require().NoError(s.store.CreateIfEmailAvailable(ctx, u))

	byID, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, byID.Email)
	s.Equal("Ana", byID.FirstName)
	s.Equal("Pop", byID.LastName)

	byEmail, err := s.store.FindByEmail(ctx, "ANA@verde.example")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)

	_, err = s.store.FindByEmail(ctx, "nobody@verde.example")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// Concurrent creation with the same email must succeed exactly once.
func (s *PostgresStoreSuite) TestConcurrentUniqueEmailViolation() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfEmailAvailable(ctx, newTestUser("race@verde.example"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestGroupMembership() {
	ctx := context.Background()
	member := newTestUser("committee@verde.example")
	outsider := newTestUser("ngo@verde.example")
	inactive := newTestUser("gone@verde.example")
	inactive.Active = false
	for _, u := range []accounts.User{member, outsider, inactive} {
		s.Require().NoError(s.store.CreateIfEmailAvailable(ctx, u))
	}
	s.Require().NoError(s.store.AddToGroup(ctx, member.ID, accounts.GroupCommittee))
	s.Require().NoError(s.store.AddToGroup(ctx, inactive.ID, accounts.GroupCommittee))
	// Re-adding is a no-op.
	s.Require().NoError(s.store.AddToGroup(ctx, member.ID, accounts.GroupCommittee))

	in, err := s.store.InGroup(ctx, member.ID, accounts.GroupCommittee)
	s.Require().NoError(err)
	s.True(in)

	in, err = s.store.InGroup(ctx, outsider.ID, accounts.GroupCommittee)
	s.Require().NoError(err)
	s.False(in)

	n, err := s.store.CountByGroup(ctx, accounts.GroupCommittee)
	s.Require().NoError(err)
	s.Equal(2, n)

	emails, err := s.store.ListEmailsByGroups(ctx, accounts.GroupCommittee)
	s.Require().NoError(err)
	s.Equal([]string{"committee@verde.example"}, emails)
}

func (s *PostgresStoreSuite) TestUpdateLinksOwner() {
	ctx := context.Background()
	u := newTestUser("owner@verde.example")
	s.Require().NoError(s.store.CreateIfEmailAvailable(ctx, u))

	orgID := id.NewOrgID()
	u.OrgID = orgID
	s.Require().NoError(s.store.Update(ctx, u))

	got, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(orgID, got.OrgID)

	listed, err := s.store.ListByOrg(ctx, orgID)
	s.Require().NoError(err)
	s.Len(listed, 1)

	missing := newTestUser("missing@verde.example")
	s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}
