package accounts

import (
	"context"
	"errors"
	"log/slog"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	pkgemail "agora/pkg/email"
	"agora/pkg/platform/sentinel"
	pkgstrings "agora/pkg/platform/strings"
	"agora/pkg/requestcontext"
)

// Store is the persistence contract the service needs.
type Store interface {
	CreateIfEmailAvailable(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
	FindByID(ctx context.Context, userID id.UserID) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]User, error)
	AddToGroup(ctx context.Context, userID id.UserID, group Group) error
	InGroup(ctx context.Context, userID id.UserID, group Group) (bool, error)
	CountByGroup(ctx context.Context, group Group) (int, error)
	ListEmailsByGroups(ctx context.Context, groups ...Group) ([]string, error)
}

// Service manages accounts on behalf of the lifecycle modules.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureOwner returns the organization's owner account, creating it lazily
// when the organization is accepted without one. An organization has at
// most one owning account: if any user is already linked, that account is
// the owner regardless of the current contact email. A fresh account gets
// a random password and joins the NGO group; the report says whether
// creation happened so callers can grant first-time permissions.
func (s *Service) EnsureOwner(ctx context.Context, orgID id.OrgID, email string) (User, bool, error) {
	linked, err := s.store.ListByOrg(ctx, orgID)
	if err != nil {
		return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "list organization accounts")
	}
	if len(linked) > 0 {
		return linked[0], false, nil
	}

	if existing, err := s.store.FindByEmail(ctx, email); err == nil {
		if existing.OrgID.IsZero() {
			existing.OrgID = orgID
			if err := s.store.Update(ctx, existing); err != nil {
				return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "link owner to organization")
			}
		}
		return existing, false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "probe owner account")
	}

	password, err := generatePassword()
	if err != nil {
		return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "generate owner password")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "hash owner password")
	}

	first, last := pkgemail.DeriveNameFromEmail(email)
	user := User{
		ID:           id.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		OrgID:        orgID,
		FirstName:    first,
		LastName:     last,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.CreateIfEmailAvailable(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost a race against another save; reuse the winner.
			existing, ferr := s.store.FindByEmail(ctx, email)
			if ferr != nil {
				return User{}, false, dErrors.Wrap(ferr, dErrors.CodeInternal, "load owner account")
			}
			return existing, false, nil
		}
		return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "create owner account")
	}
	if err := s.store.AddToGroup(ctx, user.ID, GroupNGO); err != nil {
		return User{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "add owner to ngo group")
	}
	if s.logger != nil {
		s.logger.Info("owner account created",
			"org_id", orgID.String(), "email", email, "name", user.FullName())
	}
	return user, true, nil
}

// Find loads one account.
func (s *Service) Find(ctx context.Context, userID id.UserID) (User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return User{}, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	return u, nil
}

// InGroup reports group membership.
func (s *Service) InGroup(ctx context.Context, userID id.UserID, group Group) (bool, error) {
	ok, err := s.store.InGroup(ctx, userID, group)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check group membership")
	}
	return ok, nil
}

// ListByOrg returns the accounts linked to an organization.
func (s *Service) ListByOrg(ctx context.Context, orgID id.OrgID) ([]User, error) {
	users, err := s.store.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list organization accounts")
	}
	return users, nil
}

// GroupEmails returns the active member emails of the given groups,
// deduplicated.
func (s *Service) GroupEmails(ctx context.Context, groups ...Group) ([]string, error) {
	emails, err := s.store.ListEmailsByGroups(ctx, groups...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list group emails")
	}
	return pkgstrings.DedupeAndTrimLower(emails), nil
}

// CommitteeSize returns the number of committee members; the confirmation
// threshold equals this count.
func (s *Service) CommitteeSize(ctx context.Context) (int, error) {
	n, err := s.store.CountByGroup(ctx, GroupCommittee)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count committee")
	}
	return n, nil
}
