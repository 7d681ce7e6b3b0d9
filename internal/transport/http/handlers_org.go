package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agora/internal/access"
	"agora/internal/flags"
	"agora/internal/org"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"
)

// OrgService is the organization surface the handlers call.
type OrgService interface {
	Get(ctx context.Context, orgID id.OrgID) (org.Organization, error)
	CreateDraft(ctx context.Context, o org.Organization) (org.Organization, error)
	Register(ctx context.Context, o org.Organization) (org.Organization, error)
	Save(ctx context.Context, o org.Organization) (org.Organization, error)
	Accept(ctx context.Context, orgID id.OrgID) (org.Organization, error)
	Reject(ctx context.Context, orgID id.OrgID, reason string) (org.Organization, error)
	CanProposeCandidate(ctx context.Context, orgID id.OrgID) (bool, []org.MissingField, error)
}

// orgRequest carries the caller-editable organization fields.
type orgRequest struct {
	Name                    string         `json:"name"`
	Email                   string         `json:"email"`
	Phone                   string         `json:"phone"`
	Address                 string         `json:"address"`
	City                    string         `json:"city"`
	Description             string         `json:"description"`
	RegistrationNumber      string         `json:"registration_number"`
	LegalRepresentativeName string         `json:"legal_representative_name"`
	BoardCouncil            string         `json:"board_council"`
	VotingDomainID          string         `json:"voting_domain_id"`
	Logo                    string         `json:"logo"`
	Statute                 string         `json:"statute"`
	LastBalanceSheet        string         `json:"last_balance_sheet"`
	FiscalAttestation       string         `json:"fiscal_attestation"`
	NonPoliticalAffiliation string         `json:"non_political_affiliation"`
	AnnualReports           map[int]string `json:"annual_reports"`
}

func (req orgRequest) apply(o *org.Organization) error {
	o.Name = req.Name
	o.Email = req.Email
	o.Phone = req.Phone
	o.Address = req.Address
	o.City = req.City
	o.Description = req.Description
	o.RegistrationNumber = req.RegistrationNumber
	o.LegalRepresentativeName = req.LegalRepresentativeName
	o.BoardCouncil = req.BoardCouncil
	o.Logo = req.Logo
	o.Statute = req.Statute
	o.LastBalanceSheet = req.LastBalanceSheet
	o.FiscalAttestation = req.FiscalAttestation
	o.NonPoliticalAffiliation = req.NonPoliticalAffiliation
	for year, filename := range req.AnnualReports {
		o.SetReport(year, filename)
	}
	if req.VotingDomainID == "" {
		o.VotingDomainID = id.DomainID{}
		return nil
	}
	domainID, err := id.ParseDomainID(req.VotingDomainID)
	if err != nil {
		return err
	}
	o.VotingDomainID = domainID
	return nil
}

type orgResponse struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	City           string   `json:"city"`
	County         string   `json:"county"`
	VotingDomainID string   `json:"voting_domain_id,omitempty"`
	MissingFields  []string `json:"missing_fields,omitempty"`
}

func toOrgResponse(o org.Organization) orgResponse {
	resp := orgResponse{
		ID:     o.ID.String(),
		Status: string(o.Status),
		Name:   o.Name,
		Email:  o.Email,
		City:   o.City,
		County: o.County,
	}
	if o.HasVotingDomain() {
		resp.VotingDomainID = o.VotingDomainID.String()
	}
	return resp
}

func (h *Handler) handleRegisterOrg(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	var o org.Organization
	if existing := requestcontext.OrgID(r.Context()); !existing.IsZero() {
		loaded, err := h.orgs.Get(r.Context(), existing)
		if err != nil {
			WriteError(w, err)
			return
		}
		o = loaded
	}
	if err := req.apply(&o); err != nil {
		WriteError(w, err)
		return
	}
	registered, err := h.orgs.Register(r.Context(), o)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toOrgResponse(registered))
}

func (h *Handler) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapView); err != nil {
		WriteError(w, err)
		return
	}
	o, err := h.orgs.Get(r.Context(), orgID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrgResponse(o))
}

func (h *Handler) handleSaveOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapChange); err != nil {
		WriteError(w, err)
		return
	}
	staff := h.isStaff(r.Context())
	if !staff && !h.flags.Enabled(r.Context(), flags.EnableOrgEditing) {
		WriteError(w, dErrors.New(dErrors.CodeForbidden, "organization editing is closed"))
		return
	}

	o, err := h.orgs.Get(r.Context(), orgID)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := req.apply(&o); err != nil {
		WriteError(w, err)
		return
	}
	saved, err := h.orgs.Save(r.Context(), o)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrgResponse(saved))
}

func (h *Handler) handleOrgEligibility(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapView); err != nil {
		WriteError(w, err)
		return
	}
	ok, missing, err := h.orgs.CanProposeCandidate(r.Context(), orgID)
	if err != nil {
		WriteError(w, err)
		return
	}
	fields := make([]string, len(missing))
	for i, f := range missing {
		fields[i] = string(f)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"can_propose":    ok,
		"missing_fields": fields,
	})
}

func (h *Handler) handleAcceptOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	o, err := h.orgs.Accept(r.Context(), orgID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrgResponse(o))
}

func (h *Handler) handleRejectOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	o, err := h.orgs.Reject(r.Context(), orgID, req.Reason)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrgResponse(o))
}

func (h *Handler) handleSyncOrg(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.requireOrgCapability(r, orgID, access.CapChange); err != nil {
		WriteError(w, err)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	h.sync.EnqueueOne(orgID, req.Token)
	w.WriteHeader(http.StatusAccepted)
}
