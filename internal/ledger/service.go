package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agora/internal/accounts"
	"agora/internal/candidate"
	"agora/internal/domains"
	"agora/internal/flags"
	"agora/internal/notify"
	"agora/internal/org"
	"agora/internal/resettoken"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/audit"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"
)

// Store is the persistence contract the service needs.
type Store interface {
	CreateSupporter(ctx context.Context, row Supporter) error
	DeleteSupporter(ctx context.Context, userID id.UserID, candidateID id.CandidateID) error
	// FindSupporterAmong reports which of the given users, if any, holds a
	// Supporter row for the candidate.
	FindSupporterAmong(ctx context.Context, userIDs []id.UserID, candidateID id.CandidateID) (id.UserID, bool, error)
	CountSupportersByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
	DeleteSupportersByUsers(ctx context.Context, userIDs []id.UserID) (int, error)

	CreateVote(ctx context.Context, row Vote) error
	ExistsVoteByOrgCandidate(ctx context.Context, orgID id.OrgID, candidateID id.CandidateID) (bool, error)
	CountVotesByOrgDomain(ctx context.Context, orgID id.OrgID, domainID id.DomainID) (int, error)
	CountVotesByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
	DeleteVotesByOrg(ctx context.Context, orgID id.OrgID) (int, error)

	CreateConfirmationIfAbsent(ctx context.Context, row Confirmation) (bool, error)
	CountConfirmersByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
	DeleteConfirmationsByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
	DeleteConfirmationsByUser(ctx context.Context, userID id.UserID) (int, error)

	DeleteByCandidate(ctx context.Context, candidateID id.CandidateID) error
}

// FlagChecker is the slice of the flag service the ledger consults.
type FlagChecker interface {
	Enabled(ctx context.Context, name flags.Name) bool
	AnyEnabled(ctx context.Context, names ...flags.Name) bool
}

// OrgDirectory is the slice of the organization module the ledger reads.
type OrgDirectory interface {
	Get(ctx context.Context, orgID id.OrgID) (org.Organization, error)
}

// CandidateDirectory is the slice of the candidate module the ledger uses.
type CandidateDirectory interface {
	Get(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
	Promote(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
}

// Roster covers the account reads the ledger needs.
type Roster interface {
	Find(ctx context.Context, userID id.UserID) (accounts.User, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]accounts.User, error)
	CommitteeSize(ctx context.Context) (int, error)
	InGroup(ctx context.Context, userID id.UserID, group accounts.Group) (bool, error)
}

// Config carries the ledger's per-edition knobs.
type Config struct {
	// AuditMailbox receives a best-effort notification for every vote
	// cast; empty disables the notification.
	AuditMailbox string
	// ResetSecret signs confirmation-reset tokens.
	ResetSecret string
	// ResetMaxAge bounds confirmation-reset token age.
	ResetMaxAge time.Duration
}

// editWindowFlags are the phase windows whose openness excludes the
// confirmation window. Confirmation only happens in its own stage.
var editWindowFlags = []flags.Name{
	flags.EnableOrgRegistration,
	flags.EnableOrgEditing,
	flags.EnableCandidateRegistration,
	flags.EnableCandidateEditing,
	flags.EnableCandidateSupporting,
	flags.EnableCandidateVoting,
}

// Service enforces the ledger invariants. Every write runs inside a
// transaction so the read-check-then-write guards are race-free; the store
// unique indexes remain the authoritative backstop.
type Service struct {
	store      Store
	runner     tx.Runner
	flags      FlagChecker
	domains    *domains.Registry
	orgs       OrgDirectory
	candidates CandidateDirectory
	roster     Roster
	cfg        Config

	logger    *slog.Logger
	publisher audit.Publisher
	mailer    notify.Mailer
	metrics   *Metrics
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

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, runner tx.Runner, flagChecker FlagChecker,
	registry *domains.Registry, orgs OrgDirectory,
	candidates CandidateDirectory, roster Roster, cfg Config,
	opts ...Option) *Service {
	s := &Service{
		store:      store,
		runner:     runner,
		flags:      flagChecker,
		domains:    registry,
		orgs:       orgs,
		candidates: candidates,
		roster:     roster,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ToggleSupport flips an organization's support for a candidate. Support is
// held per organization, not per account: a row created by any of the org's
// users is withdrawn by any other, and only when none exists is a new one
// created for the caller. Supporting one's own organization's candidate is
// a silent no-op rather than an error.
func (s *Service) ToggleSupport(ctx context.Context, userID id.UserID, candidateID id.CandidateID) (bool, error) {
	if !s.flags.Enabled(ctx, flags.EnableCandidateSupporting) ||
		!s.flags.Enabled(ctx, flags.GlobalSupportRound) {
		return false, dErrors.New(dErrors.CodeForbidden, "candidate supporting is closed")
	}

	c, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return false, err
	}
	user, err := s.roster.Find(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.OrgID.IsZero() && user.OrgID == c.OrgID {
		return false, nil
	}

	holders := []id.UserID{userID}
	if !user.OrgID.IsZero() {
		colleagues, err := s.roster.ListByOrg(ctx, user.OrgID)
		if err != nil {
			return false, err
		}
		for _, u := range colleagues {
			if u.ID != userID {
				holders = append(holders, u.ID)
			}
		}
	}

	var supported bool
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		holder, exists, err := s.store.FindSupporterAmong(ctx, holders, candidateID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check support")
		}
		if exists {
			if err := s.store.DeleteSupporter(ctx, holder, candidateID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "withdraw support")
			}
			supported = false
			return nil
		}
		row := Supporter{
			UserID:      userID,
			CandidateID: candidateID,
			CreatedAt:   requestcontext.Now(ctx),
		}
		if err := s.store.CreateSupporter(ctx, row); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost a race against our own double-submit; treat as on.
				supported = true
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "grant support")
		}
		supported = true
		return nil
	})
	if err != nil {
		return false, err
	}

	action := audit.ActionSupportWithdrawn
	if supported {
		action = audit.ActionSupportGranted
	}
	s.emit(ctx, action, userID, c, "")
	if s.metrics != nil {
		s.metrics.IncrementSupportToggled(supported)
	}
	return supported, nil
}

// CastVote records one elector organization's vote. The candidate must be
// confirmed and still proposed, the organization accepted, the
// (org, candidate) pair fresh, and the organization's count in the
// candidate's domain below the domain's seat count.
func (s *Service) CastVote(ctx context.Context, userID id.UserID, orgID id.OrgID, candidateID id.CandidateID) error {
	if !s.flags.Enabled(ctx, flags.EnableCandidateVoting) {
		return dErrors.New(dErrors.CodeForbidden, "candidate voting is closed")
	}

	c, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return err
	}
	if c.Status != candidate.StatusConfirmed || !c.IsProposed {
		return dErrors.New(dErrors.CodeInvalidInput, "candidate is not standing for election")
	}
	elector, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return err
	}
	if !elector.Status.Electing() {
		return dErrors.New(dErrors.CodeForbidden, "organization is not an elector")
	}
	seat, err := s.domains.Get(ctx, c.DomainID)
	if err != nil {
		return err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		dup, err := s.store.ExistsVoteByOrgCandidate(ctx, orgID, candidateID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check vote")
		}
		if dup {
			return dErrors.New(dErrors.CodeConflict, "organization already voted for this candidate")
		}
		cast, err := s.store.CountVotesByOrgDomain(ctx, orgID, c.DomainID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "count votes")
		}
		if cast >= seat.SeatCount {
			return dErrors.Newf(dErrors.CodeQuotaExceeded,
				"organization exhausted its %d votes in domain %s", seat.SeatCount, seat.Name)
		}
		row := Vote{
			UserID:      userID,
			OrgID:       orgID,
			CandidateID: candidateID,
			DomainID:    c.DomainID,
			CreatedAt:   requestcontext.Now(ctx),
		}
		if err := s.store.CreateVote(ctx, row); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "organization already voted for this candidate")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "record vote")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.ActionVoteCast, userID, c, elector.Name)
	s.mailVoteAudit(ctx, elector, c)
	if s.metrics != nil {
		s.metrics.IncrementVoteCast(seat.Name)
	}
	return nil
}

// Confirm records a committee member's attestation. Allowed only for
// committee members, only while no registration, editing, supporting or
// voting window is open. A repeat confirmation by the same user is logged
// as a warning, not surfaced as an error. Reaching the committee-size
// threshold promotes an accepted candidate to confirmed.
func (s *Service) Confirm(ctx context.Context, userID id.UserID, candidateID id.CandidateID) error {
	member, err := s.roster.InGroup(ctx, userID, accounts.GroupCommittee)
	if err != nil {
		return err
	}
	if !member {
		return dErrors.New(dErrors.CodeForbidden, "only committee members confirm candidates")
	}
	if s.flags.AnyEnabled(ctx, editWindowFlags...) {
		return dErrors.New(dErrors.CodeForbidden, "confirmation is only open in its dedicated window")
	}

	c, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return err
	}

	var promote bool
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		row := Confirmation{
			UserID:      userID,
			CandidateID: candidateID,
			CreatedAt:   requestcontext.Now(ctx),
		}
		created, err := s.store.CreateConfirmationIfAbsent(ctx, row)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record confirmation")
		}
		if !created {
			if s.logger != nil {
				s.logger.Warn("repeat confirmation ignored",
					"user_id", userID.String(), "candidate_id", candidateID.String())
			}
			return nil
		}
		confirmers, err := s.store.CountConfirmersByCandidate(ctx, candidateID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "count confirmers")
		}
		committee, err := s.roster.CommitteeSize(ctx)
		if err != nil {
			return err
		}
		promote = committee > 0 && confirmers >= committee && c.Status == candidate.StatusAccepted
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.ActionConfirmationAdded, userID, c, "")
	if promote {
		if _, err := s.candidates.Promote(ctx, candidateID); err != nil {
			return err
		}
	}
	return nil
}

// ResetConfirmations bulk-deletes every confirmation a committee member
// authored. Gated by a signed, expiring token so the link cannot be
// replayed after its window.
func (s *Service) ResetConfirmations(ctx context.Context, token string) (int, error) {
	userID, err := resettoken.Parse(token, s.cfg.ResetMaxAge, requestcontext.Now(ctx), s.cfg.ResetSecret)
	if err != nil {
		return 0, err
	}
	var deleted int
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.store.DeleteConfirmationsByUser(ctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "reset confirmations")
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("confirmations reset by token", "user_id", userID.String(), "count", deleted)
	}
	s.emit(ctx, audit.ActionConfirmationsReset, userID, candidate.Candidate{}, "")
	return deleted, nil
}

// SupportCount returns how many users back a candidate.
func (s *Service) SupportCount(ctx context.Context, candidateID id.CandidateID) (int, error) {
	n, err := s.store.CountSupportersByCandidate(ctx, candidateID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count supporters")
	}
	return n, nil
}

// VoteCount returns how many votes a candidate holds.
func (s *Service) VoteCount(ctx context.Context, candidateID id.CandidateID) (int, error) {
	n, err := s.store.CountVotesByCandidate(ctx, candidateID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count votes")
	}
	return n, nil
}

// HasVotes reports whether any vote references the candidate. The
// candidate lifecycle uses this for the immutability rule.
func (s *Service) HasVotes(ctx context.Context, candidateID id.CandidateID) (bool, error) {
	n, err := s.store.CountVotesByCandidate(ctx, candidateID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "count votes")
	}
	return n > 0, nil
}

// DeleteByCandidate purges every ledger row of a candidate. Part of the
// candidate-deletion cascade.
func (s *Service) DeleteByCandidate(ctx context.Context, candidateID id.CandidateID) error {
	if err := s.store.DeleteByCandidate(ctx, candidateID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "purge candidate ledger")
	}
	return nil
}

// DeleteConfirmationsByCandidate wipes a candidate's confirmations,
// returning how many were removed. Used by committee re-review.
func (s *Service) DeleteConfirmationsByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	n, err := s.store.DeleteConfirmationsByCandidate(ctx, candidateID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "delete confirmations")
	}
	return n, nil
}

// DeleteSupportByOrgUsers removes every Supporter row authored by the
// organization's users. Part of the domain-reassignment cascade.
func (s *Service) DeleteSupportByOrgUsers(ctx context.Context, orgID id.OrgID) (int, error) {
	users, err := s.roster.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}
	userIDs := make([]id.UserID, len(users))
	for i, u := range users {
		userIDs[i] = u.ID
	}
	n, err := s.store.DeleteSupportersByUsers(ctx, userIDs)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "delete supporters")
	}
	return n, nil
}

// DeleteVotesByOrg removes every vote cast by the organization. Part of
// the domain-reassignment cascade.
func (s *Service) DeleteVotesByOrg(ctx context.Context, orgID id.OrgID) (int, error) {
	n, err := s.store.DeleteVotesByOrg(ctx, orgID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "delete votes")
	}
	return n, nil
}

// mailVoteAudit notifies the audit mailbox about a cast vote.
// Best-effort: a failed send is logged, never fatal to the vote.
func (s *Service) mailVoteAudit(ctx context.Context, elector org.Organization, c candidate.Candidate) {
	if s.mailer == nil || s.cfg.AuditMailbox == "" {
		return
	}
	msg := notify.Message{
		Subject:      "Vote cast: " + elector.Name,
		Recipients:   []string{s.cfg.AuditMailbox},
		TextTemplate: notify.TemplateVoteAudit,
		HTMLTemplate: notify.TemplateVoteAudit,
		Context: map[string]string{
			"organization": elector.Name,
			"candidate":    c.RepresentativeName,
			"timestamp":    requestcontext.Now(ctx).UTC().Format(time.RFC3339),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn("vote audit notification failed",
			"org_id", elector.ID.String(),
			"candidate_id", c.ID.String(),
			"error", err)
	}
}

func (s *Service) emit(ctx context.Context, action audit.Action, userID id.UserID, c candidate.Candidate, subject string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Emit(ctx, audit.Event{
		Category:    action.Category(),
		Action:      action,
		Timestamp:   requestcontext.Now(ctx),
		ActorID:     userID,
		OrgID:       c.OrgID,
		CandidateID: c.ID,
		Subject:     subject,
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("ledger audit emit failed", "action", string(action), "error", err)
	}
}
