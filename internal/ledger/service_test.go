package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agora/internal/accounts"
	"agora/internal/candidate"
	"agora/internal/domains"
	"agora/internal/flags"
	"agora/internal/org"
	"agora/internal/resettoken"
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

type fakeCandidates struct {
	byID     map[id.CandidateID]candidate.Candidate
	promoted []id.CandidateID
}

func (f *fakeCandidates) Get(_ context.Context, candidateID id.CandidateID) (candidate.Candidate, error) {
	if c, ok := f.byID[candidateID]; ok {
		return c, nil
	}
	return candidate.Candidate{}, dErrors.New(dErrors.CodeNotFound, "candidate not found")
}

func (f *fakeCandidates) Promote(_ context.Context, candidateID id.CandidateID) (candidate.Candidate, error) {
	f.promoted = append(f.promoted, candidateID)
	c := f.byID[candidateID]
	c.Status = candidate.StatusConfirmed
	f.byID[candidateID] = c
	return c, nil
}

const resetSecret = "ledger-test-secret"

type LedgerServiceSuite struct {
	suite.Suite
	store      *InMemory
	flags      *flags.Service
	orgs       *fakeOrgs
	candidates *fakeCandidates
	accounts   *accounts.InMemory
	service    *Service
	ctx        context.Context

	domainID id.DomainID
	orgA     id.OrgID
	orgB     id.OrgID
	voterA   id.UserID
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.flags = flags.NewService(flags.NewInMemory())
	s.Require().NoError(s.flags.Seed(s.ctx))

	s.domainID = id.NewDomainID()
	domainStore := domains.NewInMemory()
	s.Require().NoError(domainStore.CreateIfNameAvailable(s.ctx,
		domains.Domain{ID: s.domainID, Name: "Health", SeatCount: 2}))

	s.orgA = id.NewOrgID()
	s.orgB = id.NewOrgID()
	s.orgs = &fakeOrgs{orgs: map[id.OrgID]org.Organization{
		s.orgA: {ID: s.orgA, Status: org.StatusAccepted, Name: "Org A"},
		s.orgB: {ID: s.orgB, Status: org.StatusAccepted, Name: "Org B"},
	}}
	s.candidates = &fakeCandidates{byID: make(map[id.CandidateID]candidate.Candidate)}

	s.accounts = accounts.NewInMemory()
	s.voterA = s.user("voter-a@example.org", s.orgA)

	s.service = NewService(s.store, tx.NewPassthroughRunner(), s.flags,
		domains.NewRegistry(domainStore), s.orgs, s.candidates,
		accounts.NewService(s.accounts),
		Config{ResetSecret: resetSecret, ResetMaxAge: time.Hour})
}

func (s *LedgerServiceSuite) user(email string, orgID id.OrgID) id.UserID {
	u := accounts.User{ID: id.NewUserID(), Email: email, Active: true, OrgID: orgID}
	s.Require().NoError(s.accounts.CreateIfEmailAvailable(s.ctx, u))
	return u.ID
}

func (s *LedgerServiceSuite) committeeMember(email string) id.UserID {
	userID := s.user(email, id.OrgID{})
	s.Require().NoError(s.accounts.AddToGroup(s.ctx, userID, accounts.GroupCommittee))
	return userID
}

func (s *LedgerServiceSuite) newCandidate(orgID id.OrgID, status candidate.Status) id.CandidateID {
	c := candidate.Candidate{
		ID:         id.NewCandidateID(),
		Status:     status,
		OrgID:      orgID,
		DomainID:   s.domainID,
		IsProposed: true,
	}
	s.candidates.byID[c.ID] = c
	return c.ID
}

func (s *LedgerServiceSuite) toggle(name flags.Name, on bool) {
	s.Require().NoError(s.flags.Toggle(s.ctx, name, on))
}

func (s *LedgerServiceSuite) openSupportWindow() {
	s.toggle(flags.EnableCandidateSupporting, true)
	s.toggle(flags.GlobalSupportRound, true)
}

func (s *LedgerServiceSuite) TestToggleSupport() {
	candID := s.newCandidate(s.orgB, candidate.StatusPending)

	s.Run("closed outside the supporting window", func() {
		_, err := s.service.ToggleSupport(s.ctx, s.voterA, candID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("closed when the round has no support stage", func() {
		s.toggle(flags.EnableCandidateSupporting, true)
		_, err := s.service.ToggleSupport(s.ctx, s.voterA, candID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.openSupportWindow()

	s.Run("supporting the own organization's candidate is a no-op", func() {
		ownCand := s.newCandidate(s.orgA, candidate.StatusPending)
		on, err := s.service.ToggleSupport(s.ctx, s.voterA, ownCand)
		s.Require().NoError(err)
		s.False(on)

		n, err := s.service.SupportCount(s.ctx, ownCand)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("toggles on, off and on again", func() {
		on, err := s.service.ToggleSupport(s.ctx, s.voterA, candID)
		s.Require().NoError(err)
		s.True(on)

		on, err = s.service.ToggleSupport(s.ctx, s.voterA, candID)
		s.Require().NoError(err)
		s.False(on)

		on, err = s.service.ToggleSupport(s.ctx, s.voterA, candID)
		s.Require().NoError(err)
		s.True(on)

		n, err := s.service.SupportCount(s.ctx, candID)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("support is held per organization, not per account", func() {
		colleague := s.user("colleague@orga.example", s.orgA)

		// voterA left support on from the previous case; the colleague's
		// toggle withdraws it instead of stacking a second row.
		on, err := s.service.ToggleSupport(s.ctx, colleague, candID)
		s.Require().NoError(err)
		s.False(on)

		n, err := s.service.SupportCount(s.ctx, candID)
		s.Require().NoError(err)
		s.Zero(n)

		on, err = s.service.ToggleSupport(s.ctx, colleague, candID)
		s.Require().NoError(err)
		s.True(on)

		on, err = s.service.ToggleSupport(s.ctx, s.voterA, candID)
		s.Require().NoError(err)
		s.False(on)

		n, err = s.service.SupportCount(s.ctx, candID)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *LedgerServiceSuite) TestCastVote() {
	confirmed := s.newCandidate(s.orgB, candidate.StatusConfirmed)

	s.Run("closed outside the voting window", func() {
		err := s.service.CastVote(s.ctx, s.voterA, s.orgA, confirmed)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.toggle(flags.EnableCandidateVoting, true)

	s.Run("only confirmed proposed candidates stand", func() {
		pending := s.newCandidate(id.NewOrgID(), candidate.StatusPending)
		err := s.service.CastVote(s.ctx, s.voterA, s.orgA, pending)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		withdrawn := s.newCandidate(id.NewOrgID(), candidate.StatusConfirmed)
		c := s.candidates.byID[withdrawn]
		c.IsProposed = false
		s.candidates.byID[withdrawn] = c
		err = s.service.CastVote(s.ctx, s.voterA, s.orgA, withdrawn)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("only electors vote", func() {
		rejected := id.NewOrgID()
		s.orgs.orgs[rejected] = org.Organization{ID: rejected, Status: org.StatusRejected}
		err := s.service.CastVote(s.ctx, s.voterA, rejected, confirmed)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("records a vote once per candidate", func() {
		s.Require().NoError(s.service.CastVote(s.ctx, s.voterA, s.orgA, confirmed))

		err := s.service.CastVote(s.ctx, s.voterA, s.orgA, confirmed)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		n, err := s.service.VoteCount(s.ctx, confirmed)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("seat count bounds votes per domain", func() {
		second := s.newCandidate(id.NewOrgID(), candidate.StatusConfirmed)
		third := s.newCandidate(id.NewOrgID(), candidate.StatusConfirmed)

		s.Require().NoError(s.service.CastVote(s.ctx, s.voterA, s.orgA, second))

		err := s.service.CastVote(s.ctx, s.voterA, s.orgA, third)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

		// Another organization still has its own quota.
		s.NoError(s.service.CastVote(s.ctx, s.voterA, s.orgB, third))
	})
}

func (s *LedgerServiceSuite) TestConfirm() {
	accepted := s.newCandidate(s.orgB, candidate.StatusAccepted)
	memberOne := s.committeeMember("committee-1@example.org")
	memberTwo := s.committeeMember("committee-2@example.org")

	s.Run("only committee members confirm", func() {
		err := s.service.Confirm(s.ctx, s.voterA, accepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("closed while any edit window is open", func() {
		s.toggle(flags.EnableCandidateEditing, true)
		err := s.service.Confirm(s.ctx, memberOne, accepted)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.toggle(flags.EnableCandidateEditing, false)
	})

	s.Run("promotes when every committee member confirmed", func() {
		s.Require().NoError(s.service.Confirm(s.ctx, memberOne, accepted))
		s.Empty(s.candidates.promoted, "promoted before the threshold")

		s.Require().NoError(s.service.Confirm(s.ctx, memberTwo, accepted))
		s.Equal([]id.CandidateID{accepted}, s.candidates.promoted)
	})

	s.Run("repeat confirmation is ignored", func() {
		s.Require().NoError(s.service.Confirm(s.ctx, memberOne, accepted))

		n, err := s.store.CountConfirmersByCandidate(s.ctx, accepted)
		s.Require().NoError(err)
		s.Equal(2, n)
		s.Len(s.candidates.promoted, 1)
	})
}

func (s *LedgerServiceSuite) TestResetConfirmations() {
	member := s.committeeMember("committee@example.org")
	accepted := s.newCandidate(s.orgB, candidate.StatusAccepted)
	other := s.newCandidate(id.NewOrgID(), candidate.StatusAccepted)
	s.Require().NoError(s.service.Confirm(s.ctx, member, accepted))
	s.Require().NoError(s.service.Confirm(s.ctx, member, other))

	s.Run("rejects an expired token", func() {
		stale := resettoken.Build(member, time.Now().Add(-2*time.Hour), resetSecret)
		_, err := s.service.ResetConfirmations(s.ctx, stale)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("deletes every confirmation of the token's subject", func() {
		token := resettoken.Build(member, time.Now(), resetSecret)
		deleted, err := s.service.ResetConfirmations(s.ctx, token)
		s.Require().NoError(err)
		s.Equal(2, deleted)

		n, err := s.store.CountConfirmersByCandidate(s.ctx, accepted)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *LedgerServiceSuite) TestCascadeSupport() {
	s.openSupportWindow()
	candID := s.newCandidate(s.orgB, candidate.StatusPending)
	voterTwo := s.user("voter-2@example.org", s.orgA)
	outsider := s.user("outsider@example.org", id.NewOrgID())

	for _, userID := range []id.UserID{s.voterA, voterTwo, outsider} {
		on, err := s.service.ToggleSupport(s.ctx, userID, candID)
		s.Require().NoError(err)
		s.Require().True(on)
	}

	s.Run("purges only the organization's users", func() {
		n, err := s.service.DeleteSupportByOrgUsers(s.ctx, s.orgA)
		s.Require().NoError(err)
		s.Equal(2, n)

		remaining, err := s.service.SupportCount(s.ctx, candID)
		s.Require().NoError(err)
		s.Equal(1, remaining)
	})

	s.Run("delete by candidate clears the rest", func() {
		s.Require().NoError(s.service.DeleteByCandidate(s.ctx, candID))
		n, err := s.service.SupportCount(s.ctx, candID)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *LedgerServiceSuite) TestDeleteVotesByOrg() {
	s.toggle(flags.EnableCandidateVoting, true)
	confirmed := s.newCandidate(id.NewOrgID(), candidate.StatusConfirmed)
	voterB := s.user("voter-b@example.org", s.orgB)
	s.Require().NoError(s.service.CastVote(s.ctx, s.voterA, s.orgA, confirmed))
	s.Require().NoError(s.service.CastVote(s.ctx, voterB, s.orgB, confirmed))

	n, err := s.service.DeleteVotesByOrg(s.ctx, s.orgA)
	s.Require().NoError(err)
	s.Equal(1, n)

	remaining, err := s.service.VoteCount(s.ctx, confirmed)
	s.Require().NoError(err)
	s.Equal(1, remaining)
}
