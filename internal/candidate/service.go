package candidate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"agora/internal/access"
	"agora/internal/accounts"
	"agora/internal/domains"
	"agora/internal/flags"
	"agora/internal/notify"
	"agora/internal/org"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/audit"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"
)

// Store is the persistence contract the service needs.
type Store interface {
	Create(ctx context.Context, c Candidate) error
	Update(ctx context.Context, c Candidate) error
	FindByID(ctx context.Context, candidateID id.CandidateID) (Candidate, error)
	FindByOrg(ctx context.Context, orgID id.OrgID) (Candidate, error)
	ListByStatus(ctx context.Context, status Status) ([]Candidate, error)
	ListByDomain(ctx context.Context, domainID id.DomainID) ([]Candidate, error)
	DeleteProposedByOrg(ctx context.Context, orgID id.OrgID) ([]Candidate, error)
	Delete(ctx context.Context, candidateID id.CandidateID) error
}

// FlagChecker is the slice of the flag service the lifecycle consults.
type FlagChecker interface {
	Enabled(ctx context.Context, name flags.Name) bool
}

// OrgDirectory is the slice of the organization module the lifecycle reads.
type OrgDirectory interface {
	Get(ctx context.Context, orgID id.OrgID) (org.Organization, error)
}

// Roster covers the account reads the lifecycle triggers.
type Roster interface {
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]accounts.User, error)
	GroupEmails(ctx context.Context, groups ...accounts.Group) ([]string, error)
}

// Ledger is implemented by the ledger module. The lifecycle consults vote
// existence for the immutability rule and purges dependent rows when a
// candidate is deleted or re-reviewed.
type Ledger interface {
	HasVotes(ctx context.Context, candidateID id.CandidateID) (bool, error)
	DeleteByCandidate(ctx context.Context, candidateID id.CandidateID) error
	DeleteConfirmationsByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
}

// Service drives the candidate lifecycle.
type Service struct {
	store   Store
	runner  tx.Runner
	flags   FlagChecker
	domains *domains.Registry
	orgs    OrgDirectory
	roster  Roster
	grants  access.Store
	ledger  Ledger

	logger    *slog.Logger
	publisher audit.Publisher
	mailer    notify.Mailer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMailer(mailer notify.Mailer) Option {
	return func(s *Service) { s.mailer = mailer }
}

func NewService(store Store, runner tx.Runner, flagChecker FlagChecker,
	registry *domains.Registry, orgs OrgDirectory, roster Roster,
	grants access.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		runner:  runner,
		flags:   flagChecker,
		domains: registry,
		orgs:    orgs,
		roster:  roster,
		grants:  grants,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindLedger wires the ledger module after construction; the two modules
// reference each other.
func (s *Service) BindLedger(ledger Ledger) { s.ledger = ledger }

// Get loads one candidate.
func (s *Service) Get(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	c, err := s.store.FindByID(ctx, candidateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Candidate{}, dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	if err != nil {
		return Candidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load candidate")
	}
	return c, nil
}

// ByOrg returns the organization's candidate.
func (s *Service) ByOrg(ctx context.Context, orgID id.OrgID) (Candidate, error) {
	c, err := s.store.FindByOrg(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Candidate{}, dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	if err != nil {
		return Candidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load candidate")
	}
	return c, nil
}

// ListByStatus returns candidates in one review state.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Candidate, error) {
	list, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list candidates")
	}
	return list, nil
}

// ListByDomain returns a domain's candidates.
func (s *Service) ListByDomain(ctx context.Context, domainID id.DomainID) ([]Candidate, error) {
	list, err := s.store.ListByDomain(ctx, domainID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list candidates")
	}
	return list, nil
}

// Propose files the organization's nominee. The organization must exist,
// have no candidate yet, and the registration window must be open. In a
// single-domain round the domain is forced to the sole existing one
// regardless of caller input.
func (s *Service) Propose(ctx context.Context, orgID id.OrgID, c Candidate) (Candidate, error) {
	if !s.flags.Enabled(ctx, flags.EnableCandidateRegistration) {
		return Candidate{}, dErrors.New(dErrors.CodeForbidden, "candidate registration is closed")
	}
	owner, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return Candidate{}, err
	}

	c.ID = id.NewCandidateID()
	c.Status = StatusPending
	c.OrgID = orgID
	c.InitialOrgID = id.OrgID{}
	c.IsProposed = true
	c.CreatedAt = requestcontext.Now(ctx)

	if err := s.applyDomainOverride(ctx, &c); err != nil {
		return Candidate{}, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindByOrg(ctx, orgID); err == nil {
			return dErrors.New(dErrors.CodeConflict, "organization already has a candidate")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "probe candidate")
		}
		c.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "organization already has a candidate")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create candidate")
		}
		return s.grantCreationCapabilities(ctx, c)
	})
	if err != nil {
		return Candidate{}, err
	}

	s.emit(ctx, audit.ActionCandidateProposed, c, owner.Name)
	return c, nil
}

// IsComplete reports base-field completeness and, when the voting-domain
// restriction is on, that the candidate's domain matches its
// organization's voting domain.
func (s *Service) IsComplete(ctx context.Context, c Candidate) (bool, error) {
	if len(c.missingBaseFields()) > 0 {
		return false, nil
	}
	if !s.flags.Enabled(ctx, flags.EnableVotingDomain) {
		return true, nil
	}
	if c.OrgID.IsZero() {
		return false, nil
	}
	owner, err := s.orgs.Get(ctx, c.OrgID)
	if err != nil {
		return false, err
	}
	return c.DomainID == owner.VotingDomainID, nil
}

// Withdraw un-proposes the organization's nominee. The save clears the
// organization link and the proposed bit, leaving InitialOrgID as the
// marker of who proposed them.
func (s *Service) Withdraw(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	var c Candidate
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loaded, err := s.load(ctx, candidateID)
		if err != nil {
			return err
		}
		if loaded.OrgID.IsZero() {
			return dErrors.New(dErrors.CodeConflict, "candidate is already withdrawn")
		}
		loaded.InitialOrgID = loaded.OrgID
		saved, err := s.persist(ctx, loaded)
		if err != nil {
			return err
		}
		c = saved
		return nil
	})
	if err != nil {
		return Candidate{}, err
	}
	s.emit(ctx, audit.ActionCandidateWithdrawn, c, "")
	return c, nil
}

// Save persists a candidate edit. Refused once a vote references the
// candidate; applies the single-domain override and the withdrawal
// clearing.
func (s *Service) Save(ctx context.Context, c Candidate) (Candidate, error) {
	var saved Candidate
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.load(ctx, c.ID); err != nil {
			return err
		}
		out, err := s.persist(ctx, c)
		if err != nil {
			return err
		}
		saved = out
		return nil
	})
	if err != nil {
		return Candidate{}, err
	}
	return saved, nil
}

// Accept is the committee decision moving a pending candidate into the
// confirmation stage. Existing confirmations are wiped and every committee
// member is emailed a confirmation request.
func (s *Service) Accept(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	return s.review(ctx, candidateID, StatusAccepted, audit.ActionCandidateAccepted, true)
}

// Reject closes the candidacy. Confirmations are wiped and the committee
// is notified.
func (s *Service) Reject(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	return s.review(ctx, candidateID, StatusRejected, audit.ActionCandidateRejected, true)
}

// ReturnToPending sends the candidate back for re-review. Confirmations
// are wiped but no notification goes out.
func (s *Service) ReturnToPending(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	return s.review(ctx, candidateID, StatusPending, audit.ActionCandidateReturned, false)
}

// Promote advances an accepted candidate to confirmed. Called by the
// ledger when the confirmation threshold is reached.
func (s *Service) Promote(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	var c Candidate
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loaded, err := s.load(ctx, candidateID)
		if err != nil {
			return err
		}
		if loaded.Status != StatusAccepted {
			return dErrors.Newf(dErrors.CodeConflict, "candidate is %s, not accepted", loaded.Status)
		}
		loaded.Status = StatusConfirmed
		loaded.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, loaded); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update candidate")
		}
		c = loaded
		return nil
	})
	if err != nil {
		return Candidate{}, err
	}
	s.emit(ctx, audit.ActionCandidateConfirmed, c, "")
	return c, nil
}

// DeleteProposedByOrg removes the organization's proposed candidates and
// their ledger rows, returning how many candidates were deleted. Part of
// the domain-reassignment cascade.
func (s *Service) DeleteProposedByOrg(ctx context.Context, orgID id.OrgID) (int, error) {
	deleted, err := s.store.DeleteProposedByOrg(ctx, orgID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "delete proposed candidates")
	}
	for _, c := range deleted {
		if s.ledger != nil {
			if err := s.ledger.DeleteByCandidate(ctx, c.ID); err != nil {
				return 0, err
			}
		}
		if err := s.grants.RevokeObject(ctx, access.ObjectCandidate, c.ID.String()); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "revoke candidate capabilities")
		}
	}
	return len(deleted), nil
}

// MoveOrgCandidate re-points the organization's candidate to a new domain,
// stashing the previous one. Absence of a candidate is not an error.
func (s *Service) MoveOrgCandidate(ctx context.Context, orgID id.OrgID, domainID id.DomainID) error {
	c, err := s.store.FindByOrg(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load candidate")
	}
	if c.DomainID == domainID {
		return nil
	}
	c.OldDomainID = c.DomainID
	c.DomainID = domainID
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "move candidate domain")
	}
	return nil
}

// AlignOrgCandidates force-sets the candidate's domain to the
// organization's voting domain without stashing. Used when the
// voting-domain restriction is on.
func (s *Service) AlignOrgCandidates(ctx context.Context, orgID id.OrgID, domainID id.DomainID) error {
	c, err := s.store.FindByOrg(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load candidate")
	}
	if c.DomainID == domainID {
		return nil
	}
	c.DomainID = domainID
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "align candidate domain")
	}
	return nil
}

func (s *Service) review(ctx context.Context, candidateID id.CandidateID, verdict Status, action audit.Action, notifyCommittee bool) (Candidate, error) {
	var c Candidate
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		loaded, err := s.load(ctx, candidateID)
		if err != nil {
			return err
		}
		loaded.Status = verdict
		loaded.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, loaded); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update candidate")
		}
		if s.ledger != nil {
			n, err := s.ledger.DeleteConfirmationsByCandidate(ctx, loaded.ID)
			if err != nil {
				return err
			}
			if n > 0 && s.logger != nil {
				s.logger.Info("confirmations reset", "candidate_id", loaded.ID.String(), "count", n)
			}
		}
		c = loaded
		return nil
	})
	if err != nil {
		return Candidate{}, err
	}

	if notifyCommittee {
		s.mailCommittee(ctx, c)
	}
	s.emit(ctx, action, c, "")
	return c, nil
}

// persist is the shared save path: immutability after votes, the
// single-domain override and the withdrawal clearing.
func (s *Service) persist(ctx context.Context, c Candidate) (Candidate, error) {
	if s.ledger != nil {
		voted, err := s.ledger.HasVotes(ctx, c.ID)
		if err != nil {
			return Candidate{}, err
		}
		if voted {
			return Candidate{}, dErrors.New(dErrors.CodeImmutable, "candidate has votes and can no longer change")
		}
	}

	if err := s.applyDomainOverride(ctx, &c); err != nil {
		return Candidate{}, err
	}
	if c.Withdrawn() {
		c.OrgID = id.OrgID{}
		c.IsProposed = false
	}

	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Candidate{}, dErrors.New(dErrors.CodeNotFound, "candidate not found")
		}
		return Candidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "update candidate")
	}
	return c, nil
}

func (s *Service) applyDomainOverride(ctx context.Context, c *Candidate) error {
	if !s.flags.Enabled(ctx, flags.SingleDomainRound) {
		return nil
	}
	sole, err := s.domains.Single(ctx)
	if err != nil {
		return err
	}
	c.DomainID = sole.ID
	return nil
}

func (s *Service) grantCreationCapabilities(ctx context.Context, c Candidate) error {
	users, err := s.roster.ListByOrg(ctx, c.OrgID)
	if err != nil {
		return err
	}
	objectID := c.ID.String()
	for _, u := range users {
		for _, cap := range []access.Capability{access.CapView, access.CapChange, access.CapDelete, access.CapViewData} {
			grant := access.Grant{
				Subject:    access.UserSubject(u.ID),
				ObjectType: access.ObjectCandidate,
				ObjectID:   objectID,
				Capability: cap,
			}
			if err := s.grants.Put(ctx, grant); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "grant candidate capability")
			}
		}
	}
	return nil
}

// mailCommittee asks every committee member for a fresh confirmation.
// Best-effort: a failed send is logged, never surfaced.
func (s *Service) mailCommittee(ctx context.Context, c Candidate) {
	if s.mailer == nil {
		return
	}
	recipients, err := s.roster.GroupEmails(ctx, accounts.GroupCommittee)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("committee roster lookup failed", "error", err)
		}
		return
	}
	if len(recipients) == 0 {
		return
	}
	msg := notify.Message{
		Subject:      "Candidate requires confirmation: " + c.RepresentativeName,
		Recipients:   recipients,
		TextTemplate: notify.TemplateConfirmationRequest,
		HTMLTemplate: notify.TemplateConfirmationRequest,
		Context: map[string]string{
			"candidate_id":   c.ID.String(),
			"representative": c.RepresentativeName,
			"status":         string(c.Status),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn("committee notification failed",
			"candidate_id", c.ID.String(),
			"recipients", len(recipients),
			"error", err)
	}
}

func (s *Service) load(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	c, err := s.store.FindByID(ctx, candidateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Candidate{}, dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	if err != nil {
		return Candidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load candidate")
	}
	return c, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, c Candidate, subject string) {
	if s.publisher == nil {
		return
	}
	if subject == "" {
		subject = c.RepresentativeName
	}
	err := s.publisher.Emit(ctx, audit.Event{
		Category:    action.Category(),
		Action:      action,
		Timestamp:   requestcontext.Now(ctx),
		ActorID:     requestcontext.ActorID(ctx),
		OrgID:       firstOrg(c),
		CandidateID: c.ID,
		Subject:     strings.TrimSpace(subject),
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("candidate audit emit failed", "candidate_id", c.ID.String(), "error", err)
	}
}

func firstOrg(c Candidate) id.OrgID {
	if !c.OrgID.IsZero() {
		return c.OrgID
	}
	return c.InitialOrgID
}
