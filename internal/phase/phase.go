// Package phase implements the election-cycle state machine: a fixed catalog
// of named phases, each an atomic bundle of flag toggles. No phase follows
// another automatically; transitions are administrative actions.
package phase

import (
	"fmt"

	"agora/internal/flags"
)

// Phase names an election-cycle stage.
type Phase string

const (
	// Pause freezes all mutation but keeps standings visible.
	Pause Phase = "PAUSE"
	// Deactivate takes the platform dark between editions.
	Deactivate Phase = "DEACTIVATE"
	// Registration opens organization and candidate registration. The
	// candidate-supporting flag tracks the global support-round setting when
	// this phase is entered.
	Registration Phase = "PHASE_1"
	// Validation is the committee review window: approvals and
	// confirmations only, everything else closed.
	Validation Phase = "PHASE_2"
	// Voting opens the ballot and shows provisional standings.
	Voting Phase = "PHASE_3"
	// Final closes the cycle and publishes final results.
	Final Phase = "FINAL"
)

// All returns the fixed phase catalog in cycle order.
func All() []Phase {
	return []Phase{Pause, Deactivate, Registration, Validation, Voting, Final}
}

// Parse maps a string onto the phase catalog.
func Parse(raw string) (Phase, error) {
	for _, p := range All() {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q", raw)
}

// Flagset is a pure function from phase to the flags it enables and
// disables. Together the two sets always cover the entire phase-flag
// catalog, so applying a phase fully determines platform behavior —
// applying it twice is a no-op.
func Flagset(p Phase) (enabled, disabled []flags.Name) {
	switch p {
	case Pause:
		enabled = []flags.Name{
			flags.EnableResultsDisplay,
		}
	case Deactivate:
		enabled = nil
	case Registration:
		enabled = []flags.Name{
			flags.EnableOrgRegistration,
			flags.EnableOrgEditing,
			flags.EnableOrgApproval,
			flags.EnableCandidateRegistration,
			flags.EnableCandidateEditing,
			flags.EnableCandidateSupporting,
		}
	case Validation:
		enabled = []flags.Name{
			flags.EnableOrgApproval,
			flags.EnableCandidateConfirmation,
		}
	case Voting:
		enabled = []flags.Name{
			flags.EnableCandidateVoting,
			flags.EnablePendingResults,
		}
	case Final:
		enabled = []flags.Name{
			flags.EnableResultsDisplay,
			flags.EnableFinalResults,
		}
	}

	on := make(map[flags.Name]bool, len(enabled))
	for _, name := range enabled {
		on[name] = true
	}
	for _, name := range flags.PhaseFlags() {
		if !on[name] {
			disabled = append(disabled, name)
		}
	}
	return enabled, disabled
}
