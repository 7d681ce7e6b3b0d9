package audit

import (
	"time"

	id "agora/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryElection covers events with electoral significance. These need
	// tamper-evident storage for the duration of the edition plus appeals.
	// Examples: votes cast, confirmations, phase transitions.
	CategoryElection EventCategory = "election"

	// CategoryLifecycle covers organization and candidate record changes.
	// Examples: org accepted, domain reassigned, candidate withdrawn.
	CategoryLifecycle EventCategory = "lifecycle"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: sync runs, notification outcomes. Short retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Action      Action
	Timestamp   time.Time
	ActorID     id.UserID
	OrgID       id.OrgID
	CandidateID id.CandidateID
	Subject     string
	Reason      string
	// RequestID correlates the event with the triggering HTTP request or job run.
	RequestID string
}

// Action names a domain action captured in the audit stream.
type Action string

const (
	// Phase events
	ActionPhaseApplied  Action = "phase_applied"
	ActionPhaseRefused  Action = "phase_refused"
	ActionFlagsToggled  Action = "flags_toggled"
	ActionCatalogSeeded Action = "flag_catalog_seeded"

	// Organization events
	ActionOrgRegistered    Action = "org_registered"
	ActionOrgAccepted      Action = "org_accepted"
	ActionOrgRejected      Action = "org_rejected"
	ActionOrgDomainChanged Action = "org_domain_changed"
	ActionOrgSynced        Action = "org_synced"

	// Candidate events
	ActionCandidateProposed  Action = "candidate_proposed"
	ActionCandidateAccepted  Action = "candidate_accepted"
	ActionCandidateRejected  Action = "candidate_rejected"
	ActionCandidateReturned  Action = "candidate_returned_to_pending"
	ActionCandidateConfirmed Action = "candidate_confirmed"
	ActionCandidateWithdrawn Action = "candidate_withdrawn"

	// Ledger events
	ActionSupportGranted     Action = "support_granted"
	ActionSupportWithdrawn   Action = "support_withdrawn"
	ActionVoteCast           Action = "vote_cast"
	ActionConfirmationAdded  Action = "confirmation_added"
	ActionConfirmationsReset Action = "confirmations_reset"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]EventCategory{
	ActionPhaseApplied:  CategoryElection,
	ActionPhaseRefused:  CategoryElection,
	ActionFlagsToggled:  CategoryElection,
	ActionCatalogSeeded: CategoryOperations,

	ActionOrgRegistered:    CategoryLifecycle,
	ActionOrgAccepted:      CategoryLifecycle,
	ActionOrgRejected:      CategoryLifecycle,
	ActionOrgDomainChanged: CategoryLifecycle,
	ActionOrgSynced:        CategoryOperations,

	ActionCandidateProposed:  CategoryLifecycle,
	ActionCandidateAccepted:  CategoryLifecycle,
	ActionCandidateRejected:  CategoryLifecycle,
	ActionCandidateReturned:  CategoryLifecycle,
	ActionCandidateConfirmed: CategoryElection,
	ActionCandidateWithdrawn: CategoryLifecycle,

	ActionSupportGranted:     CategoryElection,
	ActionSupportWithdrawn:   CategoryElection,
	ActionVoteCast:           CategoryElection,
	ActionConfirmationAdded:  CategoryElection,
	ActionConfirmationsReset: CategoryElection,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
