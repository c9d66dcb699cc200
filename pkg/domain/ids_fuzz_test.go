package domain

import "testing"

// FuzzParseCandidateID checks the parser never panics and only accepts
// values that round-trip through String.
func FuzzParseCandidateID(f *testing.F) {
	f.Add("")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add(NewCandidateID().String())
	f.Add("zzzzzzzz-0000-0000-0000-000000000000")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseCandidateID(input)
		if err != nil {
			return
		}
		if _, err := ParseCandidateID(id.String()); err != nil {
			t.Fatalf("accepted id %q does not round-trip: %v", input, err)
		}
	})
}

func FuzzParseRole(f *testing.F) {
	f.Add("mobilizer")
	f.Add("")
	f.Add("POC")

	f.Fuzz(func(t *testing.T, input string) {
		role, err := ParseRole(input)
		if err != nil {
			return
		}
		if !role.IsValid() {
			t.Fatalf("parser accepted invalid role %q", input)
		}
	})
}
