// Package flags implements the persisted feature-flag catalog that gates
// every lifecycle and ledger operation during an election cycle.
package flags

// Name is a persisted flag key. The catalog is fixed: flags are pre-seeded
// at initialization and toggled, never created or deleted at runtime.
type Name string

// Phase flags. The phase controller toggles these as named bundles; admin
// actions may toggle them individually.
const (
	EnableOrgRegistration       Name = "enable_org_registration"
	EnableOrgEditing            Name = "enable_org_editing"
	EnableOrgApproval           Name = "enable_org_approval"
	EnableCandidateRegistration Name = "enable_candidate_registration"
	EnableCandidateEditing      Name = "enable_candidate_editing"
	EnableCandidateSupporting   Name = "enable_candidate_supporting"
	EnableCandidateVoting       Name = "enable_candidate_voting"
	EnableCandidateConfirmation Name = "enable_candidate_confirmation"
	EnableResultsDisplay        Name = "enable_results_display"
	EnablePendingResults        Name = "enable_pending_results"
	EnableFinalResults          Name = "enable_final_results"
)

// Settings flags. These configure a round rather than gate a phase; phase
// transitions read them but never flip them.
const (
	SingleDomainRound  Name = "single_domain_round"
	GlobalSupportRound Name = "global_support_round"
	EnableVotingDomain Name = "enable_voting_domain"
)

// PhaseFlags returns the fixed list of phase flags. Phase transitions must
// account for every one of these: a SetPhase call whose enable and disable
// sets do not cover the full list is a configuration error.
func PhaseFlags() []Name {
	return []Name{
		EnableOrgRegistration,
		EnableOrgEditing,
		EnableOrgApproval,
		EnableCandidateRegistration,
		EnableCandidateEditing,
		EnableCandidateSupporting,
		EnableCandidateVoting,
		EnableCandidateConfirmation,
		EnableResultsDisplay,
		EnablePendingResults,
		EnableFinalResults,
	}
}

// SettingsFlags returns the fixed list of settings flags.
func SettingsFlags() []Name {
	return []Name{
		SingleDomainRound,
		GlobalSupportRound,
		EnableVotingDomain,
	}
}

// Catalog returns every known flag, phase and settings combined.
func Catalog() []Name {
	return append(PhaseFlags(), SettingsFlags()...)
}

// IsPhaseFlag reports whether name belongs to the phase flag set.
func IsPhaseFlag(name Name) bool {
	for _, n := range PhaseFlags() {
		if n == name {
			return true
		}
	}
	return false
}

// Flag is a durable boolean switch keyed by name.
type Flag struct {
	Name    Name
	Enabled bool
}
