package candidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"agora/internal/access"
	"agora/internal/accounts"
	"agora/internal/domains"
	"agora/internal/flags"
	"agora/internal/org"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/tx"
)

type fakeOrgs struct {
	orgs map[id.OrgID]org.Organization
}

func (f *fakeOrgs) Get(_ context.Context, orgID id.OrgID) (org.Organization, error) {
	if o, ok := f.orgs[orgID]; ok {
		return o, nil
	}
	return org.Organization{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
}

type fakeLedger struct {
	votes           map[id.CandidateID]bool
	purged          []id.CandidateID
	confirmsDeleted int
	confirmsByCand  int
}

func (f *fakeLedger) HasVotes(_ context.Context, candidateID id.CandidateID) (bool, error) {
	return f.votes[candidateID], nil
}

func (f *fakeLedger) DeleteByCandidate(_ context.Context, candidateID id.CandidateID) error {
	f.purged = append(f.purged, candidateID)
	return nil
}

func (f *fakeLedger) DeleteConfirmationsByCandidate(context.Context, id.CandidateID) (int, error) {
	f.confirmsByCand++
	return f.confirmsDeleted, nil
}

type CandidateServiceSuite struct {
	suite.Suite
	store    *InMemory
	flags    *flags.Service
	registry *domains.Registry
	orgs     *fakeOrgs
	roster   *accounts.Service
	ledger   *fakeLedger
	service  *Service
	orgID    id.OrgID
	domainID id.DomainID
	ctx      context.Context
}

func TestCandidateServiceSuite(t *testing.T) {
	suite.Run(t, new(CandidateServiceSuite))
}

func (s *CandidateServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.flags = flags.NewService(flags.NewInMemory())
	s.Require().NoError(s.flags.Seed(s.ctx))

	s.domainID = id.NewDomainID()
	domainStore := domains.NewInMemory()
	s.Require().NoError(domainStore.CreateIfNameAvailable(s.ctx,
		domains.Domain{ID: s.domainID, Name: "Health", SeatCount: 2}))
	s.registry = domains.NewRegistry(domainStore)

	s.orgID = id.NewOrgID()
	s.orgs = &fakeOrgs{orgs: map[id.OrgID]org.Organization{
		s.orgID: {ID: s.orgID, Status: org.StatusAccepted, Name: "Asociația Verde",
			VotingDomainID: s.domainID},
	}}
	s.roster = accounts.NewService(accounts.NewInMemory())
	s.ledger = &fakeLedger{votes: make(map[id.CandidateID]bool)}

	s.service = NewService(s.store, tx.NewPassthroughRunner(), s.flags,
		s.registry, s.orgs, s.roster, access.NewInMemory())
	s.service.BindLedger(s.ledger)
}

func (s *CandidateServiceSuite) toggle(name flags.Name, on bool) {
	s.Require().NoError(s.flags.Toggle(s.ctx, name, on))
}

func (s *CandidateServiceSuite) draft() Candidate {
	return Candidate{
		DomainID:           s.domainID,
		RepresentativeName: "Maria Ionescu",
		RepresentativeRole: "President",
		Photo:              "photo.jpg",
		Statement:          "statement.pdf",
		Mandate:            "mandate.pdf",
		LetterOfIntent:     "letter.pdf",
	}
}

func (s *CandidateServiceSuite) proposed() Candidate {
	s.toggle(flags.EnableCandidateRegistration, true)
	c, err := s.service.Propose(s.ctx, s.orgID, s.draft())
	s.Require().NoError(err)
	return c
}

func (s *CandidateServiceSuite) TestPropose() {
	s.Run("refused outside the registration window", func() {
		_, err := s.service.Propose(s.ctx, s.orgID, s.draft())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("refused for an unknown organization", func() {
		s.toggle(flags.EnableCandidateRegistration, true)
		_, err := s.service.Propose(s.ctx, id.NewOrgID(), s.draft())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("files a pending proposed candidate", func() {
		c := s.proposed()
		s.Equal(StatusPending, c.Status)
		s.True(c.IsProposed)
		s.Equal(s.orgID, c.OrgID)
		s.True(c.InitialOrgID.IsZero())
	})

	s.Run("one candidate per organization", func() {
		_, err := s.service.Propose(s.ctx, s.orgID, s.draft())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *CandidateServiceSuite) TestSingleDomainOverride() {
	s.toggle(flags.SingleDomainRound, true)
	s.toggle(flags.EnableCandidateRegistration, true)

	c := s.draft()
	c.DomainID = id.NewDomainID() // caller input is ignored
	saved, err := s.service.Propose(s.ctx, s.orgID, c)
	s.Require().NoError(err)
	s.Equal(s.domainID, saved.DomainID)
}

func (s *CandidateServiceSuite) TestImmutabilityAfterVote() {
	c := s.proposed()
	s.ledger.votes[c.ID] = true

	c.Statement = "revised.pdf"
	_, err := s.service.Save(s.ctx, c)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeImmutable))

	// The review path is not an edit and stays open.
	_, err = s.service.Accept(s.ctx, c.ID)
	s.NoError(err)
}

func (s *CandidateServiceSuite) TestWithdraw() {
	c := s.proposed()

	withdrawn, err := s.service.Withdraw(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(withdrawn.OrgID.IsZero())
	s.False(withdrawn.IsProposed)
	s.Equal(s.orgID, withdrawn.InitialOrgID)
	s.True(withdrawn.Withdrawn())

	s.Run("a second withdrawal conflicts", func() {
		_, err := s.service.Withdraw(s.ctx, c.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("the organization may propose again", func() {
		_, err := s.service.Propose(s.ctx, s.orgID, s.draft())
		s.NoError(err)
	})
}

func (s *CandidateServiceSuite) TestReview() {
	s.Run("accept wipes confirmations and moves to accepted", func() {
		c := s.proposed()
		s.ledger.confirmsDeleted = 2

		accepted, err := s.service.Accept(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(StatusAccepted, accepted.Status)
		s.Equal(1, s.ledger.confirmsByCand)
	})

	s.Run("return to pending re-opens review", func() {
		list, err := s.service.ListByStatus(s.ctx, StatusAccepted)
		s.Require().NoError(err)
		s.Require().Len(list, 1)

		back, err := s.service.ReturnToPending(s.ctx, list[0].ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, back.Status)
	})
}

func (s *CandidateServiceSuite) TestPromote() {
	c := s.proposed()

	s.Run("only an accepted candidate promotes", func() {
		_, err := s.service.Promote(s.ctx, c.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("accepted to confirmed", func() {
		_, err := s.service.Accept(s.ctx, c.ID)
		s.Require().NoError(err)
		promoted, err := s.service.Promote(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(StatusConfirmed, promoted.Status)
	})
}

func (s *CandidateServiceSuite) TestIsComplete() {
	c := s.proposed()

	s.Run("complete without the voting-domain restriction", func() {
		ok, err := s.service.IsComplete(s.ctx, c)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("missing base field fails", func() {
		broken := c
		broken.Photo = ""
		ok, err := s.service.IsComplete(s.ctx, broken)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("restriction requires the owner's voting domain", func() {
		s.toggle(flags.EnableVotingDomain, true)

		ok, err := s.service.IsComplete(s.ctx, c)
		s.Require().NoError(err)
		s.True(ok)

		stray := c
		stray.DomainID = id.NewDomainID()
		ok, err = s.service.IsComplete(s.ctx, stray)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *CandidateServiceSuite) TestCascadeHelpers() {
	s.Run("delete proposed purges ledger rows", func() {
		c := s.proposed()
		n, err := s.service.DeleteProposedByOrg(s.ctx, s.orgID)
		s.Require().NoError(err)
		s.Equal(1, n)
		s.Equal([]id.CandidateID{c.ID}, s.ledger.purged)

		_, err = s.service.ByOrg(s.ctx, s.orgID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("move stashes the previous domain", func() {
		c := s.proposed()
		next := id.NewDomainID()
		s.Require().NoError(s.service.MoveOrgCandidate(s.ctx, s.orgID, next))

		moved, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(next, moved.DomainID)
		s.Equal(s.domainID, moved.OldDomainID)
	})

	s.Run("align does not stash", func() {
		list, err := s.service.ListByStatus(s.ctx, StatusPending)
		s.Require().NoError(err)
		s.Require().Len(list, 1)

		final := id.NewDomainID()
		s.Require().NoError(s.service.AlignOrgCandidates(s.ctx, s.orgID, final))
		aligned, err := s.service.Get(s.ctx, list[0].ID)
		s.Require().NoError(err)
		s.Equal(final, aligned.DomainID)
		s.Equal(s.domainID, aligned.OldDomainID)
	})

	s.Run("move without a candidate is a no-op", func() {
		s.NoError(s.service.MoveOrgCandidate(s.ctx, id.NewOrgID(), id.NewDomainID()))
	})
}
