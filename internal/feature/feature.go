// Package feature derives CPU capabilities from Arm64 ID register values.
package feature

import "strings"

// Mask is a set of derived capabilities.
type Mask uint8

const (
	PAC Mask = 1 << iota
	PACGA
	BTI
	RME
	CSV2_2
)

var maskNames = []struct {
	bit  Mask
	name string
}{
	{PAC, "PAC"},
	{PACGA, "PACGA"},
	{BTI, "BTI"},
	{RME, "RME"},
	{CSV2_2, "CSV2_2"},
}

func (m Mask) Has(bits Mask) bool { return m&bits == bits }

func (m Mask) String() string {
	var parts []string
	for _, n := range maskNames {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Raw holds the ID register values the detector consumes.
type Raw struct {
	PFR0  uint64 `yaml:"pfr0"`
	PFR1  uint64 `yaml:"pfr1"`
	ISAR0 uint64 `yaml:"isar0"`
	ISAR1 uint64 `yaml:"isar1"`
	ISAR2 uint64 `yaml:"isar2"`
}

// Set is the result of Detect.
type Set struct {
	Mask       Mask
	RMEVersion uint8
	CSV2       uint8
}

// HasPAC reports any address authentication algorithm (ISAR1 API/APA or
// ISAR2 APA3).
func HasPAC(isar1, isar2 uint64) bool {
	return isar1&0x00000FF0 != 0 || isar2&0x0000F000 != 0
}

// HasPACGA reports generic authentication (ISAR1 GPI/GPA or ISAR2 GPA3).
func HasPACGA(isar1, isar2 uint64) bool {
	return isar1&0xFF000000 != 0 || isar2&0x00000F00 != 0
}

func HasBTI(pfr1 uint64) bool { return pfr1&0x0F != 0 }

func HasRME(pfr0 uint64) bool { return pfr0&0x00F0_0000_0000_0000 != 0 }

func RMEVersion(pfr0 uint64) uint8 { return uint8(pfr0>>52) & 0x0F }

// CSV2Level returns ID_AA64PFR0_EL1.CSV2.
func CSV2Level(pfr0 uint64) uint8 { return uint8(pfr0>>56) & 0x0F }

func HasCSV2_2(pfr0 uint64) bool { return CSV2Level(pfr0) >= 2 }

// Detect evaluates every derivation against raw.
func Detect(raw Raw) Set {
	var m Mask
	if HasPAC(raw.ISAR1, raw.ISAR2) {
		m |= PAC
	}
	if HasPACGA(raw.ISAR1, raw.ISAR2) {
		m |= PACGA
	}
	if HasBTI(raw.PFR1) {
		m |= BTI
	}
	if HasRME(raw.PFR0) {
		m |= RME
	}
	if HasCSV2_2(raw.PFR0) {
		m |= CSV2_2
	}
	return Set{Mask: m, RMEVersion: RMEVersion(raw.PFR0), CSV2: CSV2Level(raw.PFR0)}
}
