package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"agora/internal/accounts"
	"agora/internal/cities"
	"agora/internal/org"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/tx"
)

type fakeSource struct {
	mu        sync.Mutex
	profile   Profile
	documents map[string][]byte
	downloads []string
}

func (f *fakeSource) MyProfile(context.Context, string) (Profile, error) {
	return f.profile, nil
}

func (f *fakeSource) Organization(context.Context, int) (Profile, error) {
	return f.profile, nil
}

func (f *fakeSource) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, url)
	data, ok := f.documents[url]
	if !ok {
		return nil, fmt.Errorf("document %s unavailable", url)
	}
	return data, nil
}

type ReconcilerSuite struct {
	suite.Suite
	source     *fakeSource
	files      *MemoryStore
	store      *org.InMemory
	reconciler *Reconciler
	ctx        context.Context
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.ctx = context.Background()
	s.source = &fakeSource{documents: make(map[string][]byte)}
	s.files = NewMemoryStore()
	s.store = org.NewInMemory()

	cityStore := cities.NewInMemory()
	s.Require().NoError(cityStore.Upsert(s.ctx, cities.City{Name: "Cluj-Napoca", County: "Cluj"}))

	s.reconciler = NewReconciler(s.source, s.files, s.store, cityStore,
		tx.NewPassthroughRunner(), accounts.NewService(accounts.NewInMemory()))
}

func (s *ReconcilerSuite) linked(status org.Status) org.Organization {
	o := org.Organization{
		ID:            id.NewOrgID(),
		Status:        status,
		Name:          "Stale Name",
		Email:         "stale@example.org",
		ExternalOrgID: 42,
	}
	s.Require().NoError(s.store.Create(s.ctx, o))
	return o
}

func (s *ReconcilerSuite) fullProfile() Profile {
	return Profile{
		General: General{
			Name:               "Asociația Verde",
			Address:            "Str. Plopilor 1",
			City:               "Cluj-Napoca",
			Email:              "contact@verde.example",
			Phone:              "+40 700 000 000",
			Description:        "Environmental advocacy",
			RegistrationNumber: "RO-1234",
			LogoURL:            "https://hub.example/files/logo.png",
		},
		Legal: Legal{
			StatuteURL:          "https://hub.example/files/statute.pdf",
			BalanceSheetURL:     "https://hub.example/files/balance.pdf",
			LegalRepresentative: LegalAgent{FullName: "Ana Pop"},
			Directors: []Director{
				{FullName: "Ion Dan"}, {FullName: "Maria Ionescu"},
			},
		},
	}
}

func (s *ReconcilerSuite) seedDocuments(p Profile) {
	for _, url := range []string{p.General.LogoURL, p.Legal.StatuteURL, p.Legal.BalanceSheetURL} {
		if url != "" {
			s.source.documents[url] = []byte("content of " + url)
		}
	}
}

func (s *ReconcilerSuite) TestCleanSync() {
	o := s.linked(org.StatusDraft)
	p := s.fullProfile()
	s.source.profile = p
	s.seedDocuments(p)

	res, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)
	s.Empty(res.Errors)

	// The non-political affidavit is absent upstream but was never held
	// locally, so it is only a warning.
	s.Len(res.Warnings, 1)
	s.Contains(res.Warnings[0], "non_political_affiliation")

	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal("Asociația Verde", synced.Name)
	s.Equal("Cluj-Napoca", synced.City)
	s.Equal("Cluj", synced.County)
	s.Equal("Ana Pop", synced.LegalRepresentativeName)
	s.Equal("Ion Dan, Maria Ionescu", synced.BoardCouncil)
	s.Equal(org.StatusHubAccepted, synced.Status)
	s.False(synced.SyncedAt.IsZero())

	s.True(s.files.Has(synced.Logo))
	s.True(s.files.Has(synced.Statute))
	s.Equal("logo.png", synced.CachedFilename("logo"))
}

func (s *ReconcilerSuite) TestVotingDomainPromotesDirectly() {
	o := s.linked(org.StatusPending)
	o.VotingDomainID = id.NewDomainID()
	s.Require().NoError(s.store.Update(s.ctx, o))
	p := s.fullProfile()
	s.source.profile = p
	s.seedDocuments(p)

	_, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)

	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(org.StatusAccepted, synced.Status)
	s.False(synced.AcceptedAt.IsZero())
}

func (s *ReconcilerSuite) TestUnknownCity() {
	o := s.linked(org.StatusDraft)
	p := s.fullProfile()
	p.General.City = "Mordor"
	s.source.profile = p
	s.seedDocuments(p)

	res, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)
	s.Require().Len(res.Errors, 1)
	s.Contains(res.Errors[0], `"Mordor"`)

	// The rest of the profile still lands; the record parks at pending.
	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal("Asociația Verde", synced.Name)
	s.Equal("contact@verde.example", synced.Email)
	s.Empty(synced.City)
	s.Empty(synced.County)
	s.Equal(org.StatusPending, synced.Status)
}

func (s *ReconcilerSuite) TestUnchangedFileSkipped() {
	o := s.linked(org.StatusDraft)
	o.Logo = o.ID.String() + "/logo/logo.png"
	o.CacheFilename("logo", "logo.png")
	s.Require().NoError(s.store.Update(s.ctx, o))

	p := s.fullProfile()
	s.source.profile = p
	s.seedDocuments(p)

	_, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)
	s.NotContains(s.source.downloads, p.General.LogoURL)
	s.Contains(s.source.downloads, p.Legal.StatuteURL)
}

func (s *ReconcilerSuite) TestFileRemovedUpstream() {
	o := s.linked(org.StatusPending)
	stored := o.ID.String() + "/statute/statute.pdf"
	o.Statute = stored
	o.CacheFilename("statute", "statute.pdf")
	s.Require().NoError(s.store.Update(s.ctx, o))
	s.Require().NoError(s.files.Save(s.ctx, stored, []byte("old statute")))

	p := s.fullProfile()
	p.Legal.StatuteURL = ""
	s.source.profile = p
	s.seedDocuments(p)

	res, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)
	s.NotEmpty(res.Errors)

	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Empty(synced.Statute)
	s.Empty(synced.CachedFilename("statute"))
	s.False(s.files.Has(stored))
	s.Equal(org.StatusPending, synced.Status)
}

func (s *ReconcilerSuite) TestFailedDownloadIsPartial() {
	o := s.linked(org.StatusDraft)
	p := s.fullProfile()
	s.source.profile = p
	s.seedDocuments(p)
	delete(s.source.documents, p.Legal.BalanceSheetURL)

	res, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)
	s.Require().Len(res.Errors, 1)
	s.Contains(res.Errors[0], "last_balance_sheet")

	// A failed document download never blocks the rest of the merge.
	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.True(s.files.Has(synced.Logo))
	s.Empty(synced.LastBalanceSheet)
	s.Equal(org.StatusPending, synced.Status)
}

func (s *ReconcilerSuite) TestAcceptedStatusUntouched() {
	o := s.linked(org.StatusAccepted)
	p := s.fullProfile()
	p.General.City = "Mordor" // errors must not demote an elector
	s.source.profile = p
	s.seedDocuments(p)

	_, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().NoError(err)

	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(org.StatusAccepted, synced.Status)
}

func (s *ReconcilerSuite) TestUnlinkedWithoutToken() {
	o := org.Organization{ID: id.NewOrgID(), Status: org.StatusDraft}
	s.Require().NoError(s.store.Create(s.ctx, o))

	_, err := s.reconciler.Reconcile(s.ctx, o.ID, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ReconcilerSuite) TestReconcileExternal() {
	o := s.linked(org.StatusDraft)
	p := s.fullProfile()
	s.source.profile = p
	s.seedDocuments(p)

	_, err := s.reconciler.ReconcileExternal(s.ctx, o.ExternalOrgID)
	s.Require().NoError(err)

	_, err = s.reconciler.ReconcileExternal(s.ctx, 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	synced, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal("Asociația Verde", synced.Name)
}
