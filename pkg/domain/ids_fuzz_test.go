package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseOrgID tests that parsing never panics on arbitrary input and
// that an accepted value always round-trips.
func FuzzParseOrgID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE organizations;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseOrgID(input)
		if err == nil {
			roundTrip, err2 := ParseOrgID(parsed.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != parsed {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures the ID types agree on what they reject.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errUser := ParseUserID(input)
		_, errOrg := ParseOrgID(input)
		_, errCandidate := ParseCandidateID(input)
		_, errDomain := ParseDomainID(input)

		ok := errUser == nil
		if (errOrg == nil) != ok || (errCandidate == nil) != ok || (errDomain == nil) != ok {
			t.Errorf("inconsistent acceptance for %q", input)
		}
	})
}
