package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agora/internal/access"
	"agora/internal/candidate"
	"agora/internal/flags"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

// CandidateService is the candidate surface the handlers call.
type CandidateService interface {
	Get(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
	ByOrg(ctx context.Context, orgID id.OrgID) (candidate.Candidate, error)
	ListByDomain(ctx context.Context, domainID id.DomainID) ([]candidate.Candidate, error)
	Propose(ctx context.Context, orgID id.OrgID, c candidate.Candidate) (candidate.Candidate, error)
	Save(ctx context.Context, c candidate.Candidate) (candidate.Candidate, error)
	Withdraw(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
	Accept(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
	Reject(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
	ReturnToPending(ctx context.Context, candidateID id.CandidateID) (candidate.Candidate, error)
}

type candidateRequest struct {
	RepresentativeName string `json:"representative_name"`
	RepresentativeRole string `json:"representative_role"`
	DomainID           string `json:"domain_id"`
	Photo              string `json:"photo"`
	Statement          string `json:"statement"`
	Mandate            string `json:"mandate"`
	LetterOfIntent     string `json:"letter_of_intent"`
}

func (req candidateRequest) apply(c *candidate.Candidate) error {
	c.RepresentativeName = req.RepresentativeName
	c.RepresentativeRole = req.RepresentativeRole
	c.Photo = req.Photo
	c.Statement = req.Statement
	c.Mandate = req.Mandate
	c.LetterOfIntent = req.LetterOfIntent
	if req.DomainID == "" {
		return nil
	}
	domainID, err := id.ParseDomainID(req.DomainID)
	if err != nil {
		return err
	}
	c.DomainID = domainID
	return nil
}

type candidateResponse struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	OrgID              string `json:"org_id,omitempty"`
	DomainID           string `json:"domain_id,omitempty"`
	IsProposed         bool   `json:"is_proposed"`
	RepresentativeName string `json:"representative_name"`
	RepresentativeRole string `json:"representative_role"`
}

func toCandidateResponse(c candidate.Candidate) candidateResponse {
	resp := candidateResponse{
		ID:                 c.ID.String(),
		Status:             string(c.Status),
		IsProposed:         c.IsProposed,
		RepresentativeName: c.RepresentativeName,
		RepresentativeRole: c.RepresentativeRole,
	}
	if !c.OrgID.IsZero() {
		resp.OrgID = c.OrgID.String()
	}
	if !c.DomainID.IsZero() {
		resp.DomainID = c.DomainID.String()
	}
	return resp
}

func (h *Handler) handleProposeCandidate(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapChange); err != nil {
		WriteError(w, err)
		return
	}
	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	var c candidate.Candidate
	if err := req.apply(&c); err != nil {
		WriteError(w, err)
		return
	}
	proposed, err := h.candidates.Propose(r.Context(), orgID, c)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toCandidateResponse(proposed))
}

func (h *Handler) handleGetOrgCandidate(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapView); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.candidates.ByOrg(r.Context(), orgID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toCandidateResponse(c))
}

func (h *Handler) handleWithdrawCandidate(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapChange); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.candidates.ByOrg(r.Context(), orgID)
	if err != nil {
		WriteError(w, err)
		return
	}
	withdrawn, err := h.candidates.Withdraw(r.Context(), c.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toCandidateResponse(withdrawn))
}

func (h *Handler) handleSaveCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireCandidateCapability(r, candidateID, access.CapChange); err != nil {
		WriteError(w, err)
		return
	}
	staff := h.isStaff(r.Context())
	if !staff && !h.flags.Enabled(r.Context(), flags.EnableCandidateEditing) {
		WriteError(w, dErrors.New(dErrors.CodeForbidden, "candidate editing is closed"))
		return
	}
	c, err := h.candidates.Get(r.Context(), candidateID)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := req.apply(&c); err != nil {
		WriteError(w, err)
		return
	}
	saved, err := h.candidates.Save(r.Context(), c)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toCandidateResponse(saved))
}

func (h *Handler) handleReviewCandidate(verdict func(context.Context, id.CandidateID) (candidate.Candidate, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
		if err != nil {
			WriteError(w, err)
			return
		}
		c, err := verdict(r.Context(), candidateID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, toCandidateResponse(c))
	}
}
