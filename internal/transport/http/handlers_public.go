package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agora/internal/domains"
	"agora/internal/flags"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

// DomainRegistry is the electoral college surface the handlers read.
type DomainRegistry interface {
	Get(ctx context.Context, domainID id.DomainID) (domains.Domain, error)
	List(ctx context.Context) ([]domains.Domain, error)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListDomains(w http.ResponseWriter, r *http.Request) {
	list, err := h.domains.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make([]map[string]any, len(list))
	for i, d := range list {
		out[i] = map[string]any{
			"id":         d.ID.String(),
			"name":       d.Name,
			"seat_count": d.SeatCount,
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

// handleDomainResults exposes per-candidate vote counts once a results
// window is open. Pending results show during the voting stage, final
// results after the FINAL phase.
func (h *Handler) handleDomainResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.flags.Enabled(ctx, flags.EnableResultsDisplay) &&
		!h.flags.Enabled(ctx, flags.EnablePendingResults) {
		WriteError(w, dErrors.New(dErrors.CodeForbidden, "results are not published"))
		return
	}
	domainID, err := id.ParseDomainID(chi.URLParam(r, "domainID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	d, err := h.domains.Get(ctx, domainID)
	if err != nil {
		WriteError(w, err)
		return
	}
	list, err := h.candidates.ListByDomain(ctx, domainID)
	if err != nil {
		WriteError(w, err)
		return
	}

	final := h.flags.Enabled(ctx, flags.EnableFinalResults)
	results := make([]map[string]any, 0, len(list))
	for _, c := range list {
		entry := map[string]any{
			"candidate_id":   c.ID.String(),
			"representative": c.RepresentativeName,
			"status":         string(c.Status),
		}
		votes, err := h.ledger.VoteCount(ctx, c.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		entry["votes"] = votes
		results = append(results, entry)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"domain":     d.Name,
		"seat_count": d.SeatCount,
		"final":      final,
		"candidates": results,
	})
}
