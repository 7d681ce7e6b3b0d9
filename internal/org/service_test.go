package org

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"agora/internal/access"
	"agora/internal/accounts"
	"agora/internal/cities"
	"agora/internal/flags"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/tx"
)

type fakeCandidates struct {
	deleted     int
	deleteCalls int
	movedTo     id.DomainID
	moveCalls   int
	alignedTo   id.DomainID
	alignCalls  int
}

func (f *fakeCandidates) DeleteProposedByOrg(context.Context, id.OrgID) (int, error) {
	f.deleteCalls++
	return f.deleted, nil
}

func (f *fakeCandidates) MoveOrgCandidate(_ context.Context, _ id.OrgID, domainID id.DomainID) error {
	f.moveCalls++
	f.movedTo = domainID
	return nil
}

func (f *fakeCandidates) AlignOrgCandidates(_ context.Context, _ id.OrgID, domainID id.DomainID) error {
	f.alignCalls++
	f.alignedTo = domainID
	return nil
}

type fakeLedger struct {
	supporters   int
	votes        int
	supportCalls int
	voteCalls    int
}

func (f *fakeLedger) DeleteSupportByOrgUsers(context.Context, id.OrgID) (int, error) {
	f.supportCalls++
	return f.supporters, nil
}

func (f *fakeLedger) DeleteVotesByOrg(context.Context, id.OrgID) (int, error) {
	f.voteCalls++
	return f.votes, nil
}

type OrgServiceSuite struct {
	suite.Suite
	store      *InMemory
	flags      *flags.Service
	roster     *accounts.Service
	grants     *access.InMemory
	candidates *fakeCandidates
	ledger     *fakeLedger
	service    *Service
	ctx        context.Context
}

func TestOrgServiceSuite(t *testing.T) {
	suite.Run(t, new(OrgServiceSuite))
}

func (s *OrgServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.flags = flags.NewService(flags.NewInMemory())
	s.Require().NoError(s.flags.Seed(s.ctx))
	s.roster = accounts.NewService(accounts.NewInMemory())
	s.grants = access.NewInMemory()
	s.candidates = &fakeCandidates{}
	s.ledger = &fakeLedger{}

	cityStore := cities.NewInMemory()
	s.Require().NoError(cityStore.Upsert(s.ctx, cities.City{Name: "Cluj-Napoca", County: "Cluj"}))

	s.service = NewService(s.store, tx.NewPassthroughRunner(), s.flags,
		cityStore, s.roster, s.grants,
		CompletenessPolicy{EditionYear: 2026, ReportYears: 3})
	s.service.BindCandidates(s.candidates)
	s.service.BindLedger(s.ledger)
}

func (s *OrgServiceSuite) toggle(name flags.Name, on bool) {
	s.Require().NoError(s.flags.Toggle(s.ctx, name, on))
}

// newOrg returns a complete, not yet persisted organization with a unique
// email so repeated registrations in one test do not trip the email
// uniqueness check.
func (s *OrgServiceSuite) newOrg() Organization {
	o := completeOrg()
	o.Email = o.ID.String() + "@verde.example"
	o.ID = id.OrgID{}
	return o
}

func (s *OrgServiceSuite) registered() Organization {
	s.toggle(flags.EnableOrgRegistration, true)
	o, err := s.service.Register(s.ctx, s.newOrg())
	s.Require().NoError(err)
	return o
}

func (s *OrgServiceSuite) accepted() Organization {
	o := s.registered()
	s.toggle(flags.EnableOrgApproval, true)
	o, err := s.service.Accept(s.ctx, o.ID)
	s.Require().NoError(err)
	return o
}

func (s *OrgServiceSuite) TestRegister() {
	s.Run("refused outside the registration window", func() {
		_, err := s.service.Register(s.ctx, completeOrg())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.toggle(flags.EnableOrgRegistration, true)

	s.Run("refuses an incomplete record naming the fields", func() {
		o := completeOrg()
		o.Phone = ""
		o.Statute = ""
		_, err := s.service.Register(s.ctx, o)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "phone")
		s.Contains(err.Error(), "statute")
	})

	first := s.newOrg()

	s.Run("files a complete record as pending with derived county", func() {
		o, err := s.service.Register(s.ctx, first)
		s.Require().NoError(err)
		s.Equal(StatusPending, o.Status)
		s.Equal("Cluj", o.County)
		s.False(o.RegisteredAt.IsZero())
	})

	s.Run("refuses an email already held by a registered organization", func() {
		other := s.newOrg()
		other.Email = first.Email
		_, err := s.service.Register(s.ctx, other)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "email")
	})

	s.Run("requires a voting domain when the restriction is on", func() {
		s.toggle(flags.EnableVotingDomain, true)
		defer s.toggle(flags.EnableVotingDomain, false)

		_, err := s.service.Register(s.ctx, s.newOrg())
		s.Require().Error(err)
		s.Contains(err.Error(), "voting_domain")
	})
}

func (s *OrgServiceSuite) TestReview() {
	s.Run("approval window gates the decision", func() {
		o := s.registered()
		_, err := s.service.Accept(s.ctx, o.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("accept promotes a pending organization to elector", func() {
		o := s.accepted()
		s.Equal(StatusAccepted, o.Status)
		s.False(o.AcceptedAt.IsZero())

		// An owner account exists and is linked.
		users, err := s.roster.ListByOrg(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Require().Len(users, 1)
		s.Equal(o.Email, users[0].Email)
	})

	s.Run("accept refuses a non-pending organization", func() {
		o := s.accepted()
		_, err := s.service.Accept(s.ctx, o.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reject closes the application", func() {
		o := s.registered()
		s.toggle(flags.EnableOrgApproval, true)
		o, err := s.service.Reject(s.ctx, o.ID, "incomplete statute")
		s.Require().NoError(err)
		s.Equal(StatusRejected, o.Status)
	})

	s.Run("review of an unknown organization is not found", func() {
		s.toggle(flags.EnableOrgApproval, true)
		_, err := s.service.Accept(s.ctx, id.NewOrgID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *OrgServiceSuite) TestOwnerSurvivesEmailChange() {
	o := s.accepted()
	users, err := s.roster.ListByOrg(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	owner := users[0]

	o.Email = o.ID.String() + "-contact@verde.example"
	_, err = s.service.Save(s.ctx, o)
	s.Require().NoError(err)

	users, err = s.roster.ListByOrg(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Len(users, 1, "a changed contact email must not provision a second owner")
	s.Equal(owner.ID, users[0].ID)
}

func (s *OrgServiceSuite) TestSaveHubPromotion() {
	o := completeOrg()
	o.Status = StatusHubAccepted
	o.VotingDomainID = id.NewDomainID()
	created, err := s.service.CreateDraft(s.ctx, o)
	s.Require().NoError(err)
	// CreateDraft forces draft; the promotion fires on the next save.
	s.Equal(StatusDraft, created.Status)

	created.Status = StatusHubAccepted
	saved, err := s.service.Save(s.ctx, created)
	s.Require().NoError(err)
	s.Equal(StatusAccepted, saved.Status)
	s.False(saved.AcceptedAt.IsZero())
}

func (s *OrgServiceSuite) TestDomainChangeCascade() {
	oldDomain := id.NewDomainID()
	newDomain := id.NewDomainID()

	setup := func() Organization {
		o := s.accepted()
		o.VotingDomainID = oldDomain
		o, err := s.service.Save(s.ctx, o)
		s.Require().NoError(err)
		s.candidates.deleteCalls = 0
		s.candidates.moveCalls = 0
		s.ledger.supportCalls = 0
		s.ledger.voteCalls = 0
		return o
	}

	s.Run("during the supporting window the proposal and support are purged", func() {
		o := setup()
		s.toggle(flags.EnableCandidateSupporting, true)
		defer s.toggle(flags.EnableCandidateSupporting, false)

		o.VotingDomainID = newDomain
		_, err := s.service.Save(s.ctx, o)
		s.Require().NoError(err)

		s.Equal(1, s.candidates.deleteCalls)
		s.Equal(1, s.ledger.supportCalls)
		s.Equal(0, s.ledger.voteCalls)
		s.Equal(1, s.candidates.moveCalls)
		s.Equal(newDomain, s.candidates.movedTo)
	})

	s.Run("during the voting window only votes are purged", func() {
		o := setup()
		s.toggle(flags.EnableCandidateVoting, true)
		defer s.toggle(flags.EnableCandidateVoting, false)

		o.VotingDomainID = newDomain
		_, err := s.service.Save(s.ctx, o)
		s.Require().NoError(err)

		s.Equal(0, s.candidates.deleteCalls)
		s.Equal(0, s.ledger.supportCalls)
		s.Equal(1, s.ledger.voteCalls)
		s.Equal(1, s.candidates.moveCalls)
	})

	s.Run("an unchanged domain does not cascade", func() {
		o := setup()
		s.toggle(flags.EnableCandidateVoting, true)
		defer s.toggle(flags.EnableCandidateVoting, false)

		o.Description = "updated"
		_, err := s.service.Save(s.ctx, o)
		s.Require().NoError(err)

		s.Equal(0, s.ledger.voteCalls)
		s.Equal(0, s.candidates.moveCalls)
	})

	s.Run("clearing the domain does not cascade", func() {
		o := setup()
		o.VotingDomainID = id.DomainID{}
		_, err := s.service.Save(s.ctx, o)
		s.Require().NoError(err)
		s.Equal(0, s.candidates.moveCalls)
	})
}

func (s *OrgServiceSuite) TestVotingDomainAlignment() {
	o := s.accepted()
	domainID := id.NewDomainID()
	s.toggle(flags.EnableVotingDomain, true)

	o.VotingDomainID = domainID
	_, err := s.service.Save(s.ctx, o)
	s.Require().NoError(err)

	s.GreaterOrEqual(s.candidates.alignCalls, 1)
	s.Equal(domainID, s.candidates.alignedTo)
}

func (s *OrgServiceSuite) TestCanProposeCandidate() {
	o := s.accepted()

	ok, missing, err := s.service.CanProposeCandidate(s.ctx, o.ID)
	s.Require().NoError(err)
	s.True(ok)
	s.Empty(missing)

	o.FiscalAttestation = ""
	_, err = s.service.Save(s.ctx, o)
	s.Require().NoError(err)

	ok, missing, err = s.service.CanProposeCandidate(s.ctx, o.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Contains(missing, FieldFiscalAttestation)
}

func (s *OrgServiceSuite) TestListElectors() {
	s.accepted()
	electors, err := s.service.ListElectors(s.ctx)
	s.Require().NoError(err)
	s.Len(electors, 1)
}
