package org

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"agora/internal/access"
	"agora/internal/accounts"
	"agora/internal/cities"
	"agora/internal/flags"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/audit"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"
)

// Store is the persistence contract the service needs.
type Store interface {
	Create(ctx context.Context, o Organization) error
	Update(ctx context.Context, o Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (Organization, error)
	FindByExternalID(ctx context.Context, externalID int) (Organization, error)
	ExistsByEmailInStatus(ctx context.Context, email string, exclude id.OrgID, statuses ...Status) (bool, error)
	ListByStatus(ctx context.Context, status Status) ([]Organization, error)
	ListExcludingDraft(ctx context.Context) ([]Organization, error)
}

// FlagChecker is the slice of the flag service the lifecycle consults.
type FlagChecker interface {
	Enabled(ctx context.Context, name flags.Name) bool
}

// UserDirectory covers the account operations the lifecycle triggers.
type UserDirectory interface {
	EnsureOwner(ctx context.Context, orgID id.OrgID, email string) (accounts.User, bool, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]accounts.User, error)
}

// CandidateDirectory is implemented by the candidate module. The lifecycle
// only ever touches candidates through the domain-reassignment cascade and
// the voting-domain alignment, so the contract stays narrow.
type CandidateDirectory interface {
	// DeleteProposedByOrg removes the organization's proposed candidates
	// together with their dependent ledger rows, returning how many were
	// deleted.
	DeleteProposedByOrg(ctx context.Context, orgID id.OrgID) (int, error)
	// MoveOrgCandidate re-points the organization's remaining candidate to
	// the new domain, stashing the previous one. Absence is not an error.
	MoveOrgCandidate(ctx context.Context, orgID id.OrgID, domainID id.DomainID) error
	// AlignOrgCandidates force-sets the domain of every candidate of the
	// organization without stashing.
	AlignOrgCandidates(ctx context.Context, orgID id.OrgID, domainID id.DomainID) error
}

// LedgerPurger is implemented by the ledger module for the cascade.
type LedgerPurger interface {
	DeleteSupportByOrgUsers(ctx context.Context, orgID id.OrgID) (int, error)
	DeleteVotesByOrg(ctx context.Context, orgID id.OrgID) (int, error)
}

// Service drives the organization lifecycle. Every mutation runs inside a
// transaction so the cascade and the status side effects land atomically.
type Service struct {
	store      Store
	runner     tx.Runner
	flags      FlagChecker
	cities     cities.Store
	users      UserDirectory
	grants     access.Store
	candidates CandidateDirectory
	ledger     LedgerPurger
	policy     CompletenessPolicy

	logger    *slog.Logger
	publisher audit.Publisher
	metrics   *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, runner tx.Runner, flagChecker FlagChecker,
	cityStore cities.Store, users UserDirectory, grants access.Store,
	policy CompletenessPolicy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		runner: runner,
		flags:  flagChecker,
		cities: cityStore,
		users:  users,
		grants: grants,
		policy: policy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindCandidates wires the candidate module after construction. The two
// lifecycles reference each other, so one side has to bind late; without a
// binding the cascade skips candidate work.
func (s *Service) BindCandidates(dir CandidateDirectory) { s.candidates = dir }

// BindLedger wires the ledger module, see BindCandidates.
func (s *Service) BindLedger(purger LedgerPurger) { s.ledger = purger }

// Get loads one organization.
func (s *Service) Get(ctx context.Context, orgID id.OrgID) (Organization, error) {
	o, err := s.store.FindByID(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Organization{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	if err != nil {
		return Organization{}, dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
	}
	return o, nil
}

// CreateDraft produces a minimal draft record, used by social signup, admin
// provisioning and the external sync before the NGO finishes registering.
func (s *Service) CreateDraft(ctx context.Context, o Organization) (Organization, error) {
	if o.ID.IsZero() {
		o.ID = id.NewOrgID()
	}
	o.Status = StatusDraft
	o.RegisteredAt = requestcontext.Now(ctx)

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.save(ctx, &o, true)
	})
	if err != nil {
		return Organization{}, err
	}
	return o, nil
}

// Register files a draft as a pending application. Guarded by the
// registration window; refuses incomplete records and emails already held
// by a pending or accepted organization.
func (s *Service) Register(ctx context.Context, o Organization) (Organization, error) {
	if !s.flags.Enabled(ctx, flags.EnableOrgRegistration) {
		return Organization{}, dErrors.New(dErrors.CodeForbidden, "organization registration is closed")
	}
	if missing := MissingRegistrationFields(&o, s.registrationPolicy(ctx)); len(missing) > 0 {
		return Organization{}, missingFieldsError(missing)
	}

	created := o.ID.IsZero()
	if created {
		o.ID = id.NewOrgID()
		o.RegisteredAt = requestcontext.Now(ctx)
	}
	o.Status = StatusPending

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkEmail(ctx, o.Email, o.ID); err != nil {
			return err
		}
		return s.save(ctx, &o, created)
	})
	if err != nil {
		return Organization{}, err
	}

	s.emit(ctx, audit.ActionOrgRegistered, o, "")
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	return o, nil
}

// Save persists an edit and applies every lifecycle side effect: county
// derivation, hub-accepted promotion, lazy owner creation, the
// domain-reassignment cascade and permission refresh.
func (s *Service) Save(ctx context.Context, o Organization) (Organization, error) {
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		prev, err := s.store.FindByID(ctx, o.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
		}

		if o.Email != prev.Email {
			if err := s.checkEmail(ctx, o.Email, o.ID); err != nil {
				return err
			}
		}
		if err := s.save(ctx, &o, false); err != nil {
			return err
		}
		return s.cascadeDomainChange(ctx, prev, &o)
	})
	if err != nil {
		return Organization{}, err
	}
	return o, nil
}

// Accept is the committee decision that turns a pending application into an
// elector. Guarded by the approval window.
func (s *Service) Accept(ctx context.Context, orgID id.OrgID) (Organization, error) {
	o, err := s.review(ctx, orgID, StatusAccepted)
	if err != nil {
		return Organization{}, err
	}
	s.emit(ctx, audit.ActionOrgAccepted, o, "")
	if s.metrics != nil {
		s.metrics.IncrementAccepted()
	}
	return o, nil
}

// Reject closes a pending application. Guarded by the approval window.
func (s *Service) Reject(ctx context.Context, orgID id.OrgID, reason string) (Organization, error) {
	o, err := s.review(ctx, orgID, StatusRejected)
	if err != nil {
		return Organization{}, err
	}
	s.emit(ctx, audit.ActionOrgRejected, o, reason)
	return o, nil
}

// CanProposeCandidate reports whether the organization holds every document
// a candidate proposal requires.
func (s *Service) CanProposeCandidate(ctx context.Context, orgID id.OrgID) (bool, []MissingField, error) {
	o, err := s.Get(ctx, orgID)
	if err != nil {
		return false, nil, err
	}
	missing := MissingProposalFields(&o, s.registrationPolicy(ctx))
	return len(missing) == 0, missing, nil
}

// ListElectors returns the accepted organizations.
func (s *Service) ListElectors(ctx context.Context) ([]Organization, error) {
	orgs, err := s.store.ListByStatus(ctx, StatusAccepted)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list electors")
	}
	return orgs, nil
}

func (s *Service) review(ctx context.Context, orgID id.OrgID, verdict Status) (Organization, error) {
	if !s.flags.Enabled(ctx, flags.EnableOrgApproval) {
		return Organization{}, dErrors.New(dErrors.CodeForbidden, "organization approval is closed")
	}
	var o Organization
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loaded, err := s.store.FindByID(ctx, orgID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
		}
		if loaded.Status != StatusPending {
			return dErrors.Newf(dErrors.CodeConflict, "organization is %s, not pending", loaded.Status)
		}
		loaded.Status = verdict
		if err := s.save(ctx, &loaded, false); err != nil {
			return err
		}
		o = loaded
		return nil
	})
	return o, err
}

// save applies the unconditional side effects of every persist: county
// derivation, hub-accepted promotion, owner creation, voting-domain
// alignment and permission grants. Callers are responsible for running it
// inside a transaction.
func (s *Service) save(ctx context.Context, o *Organization, created bool) error {
	if err := s.deriveCounty(ctx, o); err != nil {
		return err
	}

	if o.Status == StatusHubAccepted && o.HasVotingDomain() {
		o.Status = StatusAccepted
	}

	now := requestcontext.Now(ctx)
	o.UpdatedAt = now
	if o.Status == StatusAccepted && o.AcceptedAt.IsZero() {
		o.AcceptedAt = now
	}

	if created {
		if err := s.store.Create(ctx, *o); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "organization already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create organization")
		}
	} else {
		if err := s.store.Update(ctx, *o); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "update organization")
		}
	}

	if o.Status.Electing() {
		if _, _, err := s.users.EnsureOwner(ctx, o.ID, o.Email); err != nil {
			return err
		}
	}

	if s.flags.Enabled(ctx, flags.EnableVotingDomain) && o.HasVotingDomain() && s.candidates != nil {
		if err := s.candidates.AlignOrgCandidates(ctx, o.ID, o.VotingDomainID); err != nil {
			return err
		}
	}

	return s.refreshGrants(ctx, *o, created)
}

func (s *Service) deriveCounty(ctx context.Context, o *Organization) error {
	if o.City == "" {
		o.County = ""
		return nil
	}
	city, err := s.cities.FindByName(ctx, o.City)
	if errors.Is(err, sentinel.ErrNotFound) {
		o.County = ""
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "resolve city")
	}
	o.County = city.County
	return nil
}

// cascadeDomainChange runs the domain-reassignment cascade when the voting
// domain actually changed on an organization that is and remains accepted.
// Which ledger rows get purged depends on which phase flags are on right
// now, not on the phase active when the rows were written.
func (s *Service) cascadeDomainChange(ctx context.Context, prev Organization, o *Organization) error {
	if !prev.Status.Electing() || !o.Status.Electing() {
		return nil
	}
	if o.VotingDomainID == prev.VotingDomainID || !o.HasVotingDomain() {
		return nil
	}

	var candidatesDeleted, supportersDeleted, votesDeleted int
	if s.flags.Enabled(ctx, flags.EnableCandidateSupporting) {
		if s.candidates != nil {
			n, err := s.candidates.DeleteProposedByOrg(ctx, o.ID)
			if err != nil {
				return err
			}
			candidatesDeleted = n
		}
		if s.ledger != nil {
			n, err := s.ledger.DeleteSupportByOrgUsers(ctx, o.ID)
			if err != nil {
				return err
			}
			supportersDeleted = n
		}
	}
	if s.flags.Enabled(ctx, flags.EnableCandidateVoting) && s.ledger != nil {
		n, err := s.ledger.DeleteVotesByOrg(ctx, o.ID)
		if err != nil {
			return err
		}
		votesDeleted = n
	}
	if s.candidates != nil {
		if err := s.candidates.MoveOrgCandidate(ctx, o.ID, o.VotingDomainID); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("voting domain reassigned",
			"org_id", o.ID.String(),
			"old_domain", prev.VotingDomainID.String(),
			"new_domain", o.VotingDomainID.String(),
			"candidates_deleted", candidatesDeleted,
			"supporters_deleted", supportersDeleted,
			"votes_deleted", votesDeleted)
	}
	s.emit(ctx, audit.ActionOrgDomainChanged, *o, prev.VotingDomainID.String())
	return nil
}

// refreshGrants re-issues per-user capabilities for every linked account.
// Group-level capabilities are granted once, on first creation.
func (s *Service) refreshGrants(ctx context.Context, o Organization, created bool) error {
	users, err := s.users.ListByOrg(ctx, o.ID)
	if err != nil {
		return err
	}
	objectID := o.ID.String()
	for _, u := range users {
		for _, cap := range []access.Capability{access.CapView, access.CapChange} {
			grant := access.Grant{
				Subject:    access.UserSubject(u.ID),
				ObjectType: access.ObjectOrganization,
				ObjectID:   objectID,
				Capability: cap,
			}
			if err := s.grants.Put(ctx, grant); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "grant user capability")
			}
		}
	}
	if !created {
		return nil
	}
	groupGrants := []access.Grant{
		{Subject: access.GroupSubject(string(accounts.GroupStaff)), Capability: access.CapView},
		{Subject: access.GroupSubject(string(accounts.GroupSupport)), Capability: access.CapView},
		{Subject: access.GroupSubject(string(accounts.GroupCommittee)), Capability: access.CapView},
		{Subject: access.GroupSubject(string(accounts.GroupCommittee)), Capability: access.CapApprove},
	}
	for _, grant := range groupGrants {
		grant.ObjectType = access.ObjectOrganization
		grant.ObjectID = objectID
		if err := s.grants.Put(ctx, grant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "grant group capability")
		}
	}
	return nil
}

func (s *Service) checkEmail(ctx context.Context, email string, exclude id.OrgID) error {
	taken, err := s.store.ExistsByEmailInStatus(ctx, email, exclude, StatusPending, StatusAccepted)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check email")
	}
	if taken {
		return dErrors.New(dErrors.CodeValidation, "email already used by a registered organization")
	}
	return nil
}

func (s *Service) registrationPolicy(ctx context.Context) CompletenessPolicy {
	policy := s.policy
	policy.VotingDomainRequired = s.flags.Enabled(ctx, flags.EnableVotingDomain)
	return policy
}

func (s *Service) emit(ctx context.Context, action audit.Action, o Organization, reason string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Emit(ctx, audit.Event{
		Category:  action.Category(),
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		ActorID:   requestcontext.ActorID(ctx),
		OrgID:     o.ID,
		Subject:   o.Name,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("organization audit emit failed", "org_id", o.ID.String(), "error", err)
	}
}

func missingFieldsError(missing []MissingField) error {
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	return dErrors.Newf(dErrors.CodeValidation, "incomplete registration, missing: %s", strings.Join(names, ", "))
}
