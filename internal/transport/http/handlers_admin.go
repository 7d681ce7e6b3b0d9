package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agora/internal/flags"
	"agora/internal/phase"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

// FlagService is the flag surface the handlers call.
type FlagService interface {
	Enabled(ctx context.Context, name flags.Name) bool
	Toggle(ctx context.Context, name flags.Name, enabled bool) error
	List(ctx context.Context) ([]flags.Flag, error)
}

// PhaseController applies phase transitions.
type PhaseController interface {
	Apply(ctx context.Context, p phase.Phase) error
}

// SyncTrigger queues reconciliations.
type SyncTrigger interface {
	EnqueueOne(orgID id.OrgID, token string)
	Sweep(ctx context.Context) (int, error)
}

func (h *Handler) handleApplyPhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	p, err := phase.Parse(req.Phase)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.phases.Apply(r.Context(), p); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"phase": string(p)})
}

func (h *Handler) handleListFlags(w http.ResponseWriter, r *http.Request) {
	list, err := h.flags.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make(map[string]bool, len(list))
	for _, f := range list {
		out[string(f.Name)] = f.Enabled
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	name := flags.Name(chi.URLParam(r, "name"))
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := h.flags.Toggle(r.Context(), name, req.Enabled); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"name":    string(name),
		"enabled": req.Enabled,
	})
}

func (h *Handler) handleAdminSync(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	h.sync.EnqueueOne(orgID, "")
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	queued, err := h.sync.Sweep(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"queued": queued})
}
