package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agora/internal/access"
	"agora/internal/accounts"
	"agora/internal/platform/middleware"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"
)

// Handler is the thin HTTP layer over the domain services.
type Handler struct {
	logger     *slog.Logger
	validator  middleware.JWTValidator
	grants     access.Store
	orgs       OrgService
	candidates CandidateService
	ledger     LedgerService
	flags      FlagService
	phases     PhaseController
	domains    DomainRegistry
	sync       SyncTrigger
}

func NewHandler(logger *slog.Logger, validator middleware.JWTValidator,
	grants access.Store, orgs OrgService, candidates CandidateService,
	ledger LedgerService, flagService FlagService, phases PhaseController,
	registry DomainRegistry, sync SyncTrigger) *Handler {
	return &Handler{
		logger:     logger,
		validator:  validator,
		grants:     grants,
		orgs:       orgs,
		candidates: candidates,
		ledger:     ledger,
		flags:      flagService,
		phases:     phases,
		domains:    registry,
		sync:       sync,
	}
}

// NewRouter wires all endpoints. Committee and staff surfaces sit behind
// group checks on top of bearer auth.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/domains", h.handleListDomains)
	r.Get("/domains/{domainID}/results", h.handleDomainResults)
	r.Post("/confirmations/reset", h.handleResetConfirmations)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Post("/organizations", h.handleRegisterOrg)
		r.Get("/organizations/{orgID}", h.handleGetOrg)
		r.Put("/organizations/{orgID}", h.handleSaveOrg)
		r.Get("/organizations/{orgID}/eligibility", h.handleOrgEligibility)
		r.Post("/organizations/{orgID}/sync", h.handleSyncOrg)

		r.Post("/organizations/{orgID}/candidate", h.handleProposeCandidate)
		r.Get("/organizations/{orgID}/candidate", h.handleGetOrgCandidate)
		r.Delete("/organizations/{orgID}/candidate", h.handleWithdrawCandidate)
		r.Put("/candidates/{candidateID}", h.handleSaveCandidate)

		r.Post("/candidates/{candidateID}/support", h.handleToggleSupport)
		r.Post("/candidates/{candidateID}/vote", h.handleCastVote)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireGroup(string(accounts.GroupCommittee), h.logger))
			r.Post("/candidates/{candidateID}/confirm", h.handleConfirmCandidate)
			r.Post("/committee/organizations/{orgID}/accept", h.handleAcceptOrg)
			r.Post("/committee/organizations/{orgID}/reject", h.handleRejectOrg)
			r.Post("/committee/candidates/{candidateID}/accept", h.handleReviewCandidate(h.candidates.Accept))
			r.Post("/committee/candidates/{candidateID}/reject", h.handleReviewCandidate(h.candidates.Reject))
			r.Post("/committee/candidates/{candidateID}/return", h.handleReviewCandidate(h.candidates.ReturnToPending))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireGroup(string(accounts.GroupStaff), h.logger))
			r.Post("/admin/phase", h.handleApplyPhase)
			r.Get("/admin/flags", h.handleListFlags)
			r.Put("/admin/flags/{name}", h.handleToggleFlag)
			r.Post("/admin/organizations/{orgID}/sync", h.handleAdminSync)
			r.Post("/admin/sync/sweep", h.handleSweep)
		})
	})

	return r
}

// isStaff reports whether the caller belongs to the staff or support group.
func (h *Handler) isStaff(ctx context.Context) bool {
	return middleware.InGroup(ctx, string(accounts.GroupStaff)) ||
		middleware.InGroup(ctx, string(accounts.GroupSupport))
}

// requireOrgCapability enforces object-level access: staff and support see
// everything, other callers need a matching grant.
func (h *Handler) requireOrgCapability(r *http.Request, orgID id.OrgID, cap access.Capability) error {
	return h.requireCapability(r, access.ObjectOrganization, orgID.String(), cap)
}

func (h *Handler) requireCandidateCapability(r *http.Request, candidateID id.CandidateID, cap access.Capability) error {
	return h.requireCapability(r, access.ObjectCandidate, candidateID.String(), cap)
}

func (h *Handler) requireCapability(r *http.Request, objectType access.ObjectType, objectID string, cap access.Capability) error {
	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)
	groups := middleware.Groups(ctx)
	ok, err := h.grants.Has(ctx, actor, groups, objectType, objectID, cap)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check capability")
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "missing capability")
	}
	return nil
}
