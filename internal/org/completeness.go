package org

// MissingField names one unmet completeness requirement.
type MissingField string

const (
	FieldName                    MissingField = "name"
	FieldEmail                   MissingField = "email"
	FieldPhone                   MissingField = "phone"
	FieldAddress                 MissingField = "address"
	FieldCity                    MissingField = "city"
	FieldDescription             MissingField = "description"
	FieldRegistrationNumber      MissingField = "registration_number"
	FieldLegalRepresentative     MissingField = "legal_representative_name"
	FieldVotingDomain            MissingField = "voting_domain"
	FieldLogo                    MissingField = "logo"
	FieldStatute                 MissingField = "statute"
	FieldLastBalanceSheet        MissingField = "last_balance_sheet"
	FieldFiscalAttestation       MissingField = "fiscal_attestation"
	FieldNonPoliticalAffiliation MissingField = "non_political_affiliation"
)

// ReportField names the annual report requirement for a specific year.
func ReportField(year int) MissingField {
	digits := [4]byte{}
	y := year
	for i := 3; i >= 0; i-- {
		digits[i] = byte('0' + y%10)
		y /= 10
	}
	return MissingField("annual_report_" + string(digits[:]))
}

// CompletenessPolicy captures the per-edition knobs the checks depend on.
type CompletenessPolicy struct {
	// VotingDomainRequired mirrors the voting-domain settings flag: when
	// on, registration completeness requires an assigned domain.
	VotingDomainRequired bool
	// EditionYear is the current election edition year.
	EditionYear int
	// ReportYears is how many most-recent annual reports a proposing
	// organization must have filed, counted back from EditionYear.
	ReportYears int
}

// MissingRegistrationFields walks the base required-field list. An empty
// result means the organization can be submitted for review.
func MissingRegistrationFields(o *Organization, policy CompletenessPolicy) []MissingField {
	var missing []MissingField
	require := func(value string, field MissingField) {
		if value == "" {
			missing = append(missing, field)
		}
	}
	require(o.Name, FieldName)
	require(o.Email, FieldEmail)
	require(o.Phone, FieldPhone)
	require(o.Address, FieldAddress)
	require(o.City, FieldCity)
	require(o.Description, FieldDescription)
	require(o.RegistrationNumber, FieldRegistrationNumber)
	require(o.LegalRepresentativeName, FieldLegalRepresentative)
	require(o.Logo, FieldLogo)
	require(o.Statute, FieldStatute)
	if policy.VotingDomainRequired && !o.HasVotingDomain() {
		missing = append(missing, FieldVotingDomain)
	}
	return missing
}

// MissingProposalFields extends the registration list with the financial
// and legal documents a candidate-proposing organization must hold,
// including the N most-recent annual reports.
func MissingProposalFields(o *Organization, policy CompletenessPolicy) []MissingField {
	missing := MissingRegistrationFields(o, policy)
	if o.LastBalanceSheet == "" {
		missing = append(missing, FieldLastBalanceSheet)
	}
	if o.FiscalAttestation == "" {
		missing = append(missing, FieldFiscalAttestation)
	}
	if o.NonPoliticalAffiliation == "" {
		missing = append(missing, FieldNonPoliticalAffiliation)
	}
	years := policy.ReportYears
	if years <= 0 {
		years = 3
	}
	for offset := 1; offset <= years; offset++ {
		year := policy.EditionYear - offset
		if o.Report(year) == "" {
			missing = append(missing, ReportField(year))
		}
	}
	return missing
}
