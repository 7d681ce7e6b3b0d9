package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "agora/pkg/domain-errors"
)

type FlagServiceSuite struct {
	suite.Suite
	store   *InMemory
	service *Service
	ctx     context.Context
}

func TestFlagServiceSuite(t *testing.T) {
	suite.Run(t, new(FlagServiceSuite))
}

func (s *FlagServiceSuite) SetupTest() {
	s.store = NewInMemory()
	s.service = NewService(s.store)
	s.ctx = context.Background()
}

func (s *FlagServiceSuite) seedAll() {
	s.Require().NoError(s.service.Seed(s.ctx))
}

func (s *FlagServiceSuite) TestEnabled() {
	s.Run("missing flag reads as disabled", func() {
		s.False(s.service.Enabled(s.ctx, EnableCandidateVoting))
	})

	s.Run("stored value is returned", func() {
		s.seedAll()
		s.Require().NoError(s.service.Toggle(s.ctx, EnableCandidateVoting, true))
		s.True(s.service.Enabled(s.ctx, EnableCandidateVoting))
		s.False(s.service.Enabled(s.ctx, EnableCandidateSupporting))
	})

	s.Run("toggle invalidates the cached value", func() {
		s.seedAll()
		s.Require().NoError(s.service.Toggle(s.ctx, EnableOrgEditing, true))
		s.True(s.service.Enabled(s.ctx, EnableOrgEditing))
		s.Require().NoError(s.service.Toggle(s.ctx, EnableOrgEditing, false))
		s.False(s.service.Enabled(s.ctx, EnableOrgEditing))
	})
}

func (s *FlagServiceSuite) TestAnyEnabled() {
	s.seedAll()
	s.False(s.service.AnyEnabled(s.ctx, EnableOrgEditing, EnableCandidateEditing))
	s.Require().NoError(s.service.Toggle(s.ctx, EnableCandidateEditing, true))
	s.True(s.service.AnyEnabled(s.ctx, EnableOrgEditing, EnableCandidateEditing))
}

func (s *FlagServiceSuite) TestToggle() {
	s.seedAll()

	s.Run("unknown flag is a validation error", func() {
		err := s.service.Toggle(s.ctx, Name("enable_time_travel"), true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("settings flags can be toggled directly", func() {
		s.Require().NoError(s.service.Toggle(s.ctx, GlobalSupportRound, true))
		s.True(s.service.Enabled(s.ctx, GlobalSupportRound))
	})
}

func (s *FlagServiceSuite) TestSetPhase() {
	s.Run("refuses when the stored catalog is incomplete", func() {
		// Nothing seeded: the pre-check must refuse before any write.
		err := s.service.SetPhase(s.ctx, PhaseFlags(), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("refuses sets that do not cover the phase catalog", func() {
		s.seedAll()
		err := s.service.SetPhase(s.ctx,
			[]Name{EnableOrgRegistration}, []Name{EnableOrgEditing})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("refuses a flag in both sets", func() {
		s.seedAll()
		err := s.service.SetPhase(s.ctx, PhaseFlags(), []Name{EnableOrgRegistration})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("refuses settings flags in a phase batch", func() {
		s.seedAll()
		enabled := append([]Name{GlobalSupportRound}, PhaseFlags()[1:]...)
		err := s.service.SetPhase(s.ctx, enabled, PhaseFlags()[:1])
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("applies a full covering batch atomically", func() {
		s.seedAll()
		enabled := []Name{EnableCandidateVoting, EnablePendingResults}
		var disabled []Name
		for _, name := range PhaseFlags() {
			if name != EnableCandidateVoting && name != EnablePendingResults {
				disabled = append(disabled, name)
			}
		}
		s.Require().NoError(s.service.SetPhase(s.ctx, enabled, disabled))
		s.True(s.service.Enabled(s.ctx, EnableCandidateVoting))
		s.True(s.service.Enabled(s.ctx, EnablePendingResults))
		s.False(s.service.Enabled(s.ctx, EnableOrgRegistration))
	})

	s.Run("leaves settings flags untouched", func() {
		s.seedAll()
		s.Require().NoError(s.service.Toggle(s.ctx, SingleDomainRound, true))
		s.Require().NoError(s.service.SetPhase(s.ctx, nil, PhaseFlags()))
		s.True(s.service.Enabled(s.ctx, SingleDomainRound))
	})
}

func (s *FlagServiceSuite) TestSeed() {
	s.Run("creates every catalog flag disabled", func() {
		s.seedAll()
		list, err := s.service.List(s.ctx)
		s.Require().NoError(err)
		s.Len(list, len(Catalog()))
		for _, f := range list {
			s.False(f.Enabled, "flag %s seeded enabled", f.Name)
		}
	})

	s.Run("is idempotent and keeps existing values", func() {
		s.seedAll()
		s.Require().NoError(s.service.Toggle(s.ctx, EnableOrgApproval, true))
		s.seedAll()
		s.True(s.service.Enabled(s.ctx, EnableOrgApproval))
	})
}
