package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"
)

// LedgerService is the ledger surface the handlers call.
type LedgerService interface {
	ToggleSupport(ctx context.Context, userID id.UserID, candidateID id.CandidateID) (bool, error)
	CastVote(ctx context.Context, userID id.UserID, orgID id.OrgID, candidateID id.CandidateID) error
	Confirm(ctx context.Context, userID id.UserID, candidateID id.CandidateID) error
	ResetConfirmations(ctx context.Context, token string) (int, error)
	SupportCount(ctx context.Context, candidateID id.CandidateID) (int, error)
	VoteCount(ctx context.Context, candidateID id.CandidateID) (int, error)
}

func (h *Handler) handleToggleSupport(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	actor := requestcontext.ActorID(r.Context())
	supported, err := h.ledger.ToggleSupport(r.Context(), actor, candidateID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"supported": supported})
}

func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	actor := requestcontext.ActorID(r.Context())
	orgID := requestcontext.OrgID(r.Context())
	if orgID.IsZero() {
		WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not linked to an organization"))
		return
	}
	if err := h.ledger.CastVote(r.Context(), actor, orgID, candidateID); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConfirmCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	actor := requestcontext.ActorID(r.Context())
	if err := h.ledger.Confirm(r.Context(), actor, candidateID); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetConfirmations is gated by the signed token alone; the link is
// mailed to the committee member and works without a session.
func (h *Handler) handleResetConfirmations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "missing token"))
		return
	}
	deleted, err := h.ledger.ResetConfirmations(r.Context(), req.Token)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
