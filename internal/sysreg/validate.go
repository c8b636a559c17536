package sysreg

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Validate checks the catalog invariants: unique IDs, names and encodings,
// class tags that agree with the encodings present, a non-empty access set,
// and Since versions no newer than Version.
func Validate() error { return validate(catalog) }

func validate(entries []Entry) error {
	ids := make(map[ID]string)
	names := make(map[string]ID)
	encs := make(map[uint32]string)
	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("sysreg: register 0x%02x has no name", uint8(e.ID))
		}
		if prev, ok := ids[e.ID]; ok {
			return fmt.Errorf("sysreg: %s reuses ID 0x%02x of %s", e.Name, uint8(e.ID), prev)
		}
		ids[e.ID] = e.Name
		if prev, ok := names[e.Name]; ok {
			return fmt.Errorf("sysreg: name %s used by 0x%02x and 0x%02x", e.Name, uint8(prev), uint8(e.ID))
		}
		names[e.Name] = e.ID

		want := 1
		if e.ID.IsPair() {
			want = 2
		}
		if len(e.Encodings) != want {
			return fmt.Errorf("sysreg: %s is a %s register with %d encodings", e.Name, e.Width(), len(e.Encodings))
		}
		for _, reg := range e.Encodings {
			if prev, ok := encs[reg.Bits()]; ok {
				return fmt.Errorf("sysreg: %s and %s share encoding %s", prev, e.Name, reg)
			}
			encs[reg.Bits()] = e.Name
		}

		if e.Access&(Read|Write) == 0 {
			return fmt.Errorf("sysreg: %s has no access", e.Name)
		}
		if !semver.IsValid(e.Since) {
			return fmt.Errorf("sysreg: %s has invalid version %q", e.Name, e.Since)
		}
		if semver.Compare(e.Since, Version) > 0 {
			return fmt.Errorf("sysreg: %s introduced in %s, newer than catalog %s", e.Name, e.Since, Version)
		}
		for _, f := range e.Fields {
			if f.MSB < f.LSB || int(f.MSB) >= 8*e.Width().Size() {
				return fmt.Errorf("sysreg: %s field %s has bad range %d:%d", e.Name, f.Name, f.MSB, f.LSB)
			}
		}
	}
	return nil
}

// AvailableIn reports whether the entry exists in a peer speaking catalog
// version v.
func (e Entry) AvailableIn(v string) bool {
	return semver.Compare(e.Since, v) <= 0
}
