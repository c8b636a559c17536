package sysreg

import "github.com/tinyrange/cpusysregs/internal/asm/arm64"

// Register IDs. Values are part of the channel ABI and never change.
const (
	IDAA64PFR0  ID = 0x00
	IDAA64PFR1  ID = 0x01
	IDAA64ISAR0 ID = 0x02
	IDAA64ISAR1 ID = 0x03
	IDAA64ISAR2 ID = 0x04
	TCR         ID = 0x05
	MIDR        ID = 0x06
	MPIDR       ID = 0x07
	REVIDR      ID = 0x08
	TPIDRRO_EL0 ID = 0x09
	TPIDR_EL0   ID = 0x0A
	TPIDR_EL1   ID = 0x0B
	SCXTNUM_EL0 ID = 0x0C
	SCXTNUM_EL1 ID = 0x0D
	SCTLR       ID = 0x0E

	APIAKEY ID = 0x80
	APIBKEY ID = 0x81
	APDAKEY ID = 0x82
	APDBKEY ID = 0x83
	APGAKEY ID = 0x84
)

const (
	v100 = "v1.0.0"
	v110 = "v1.1.0"
)

func enc(op0, op1, crn, crm, op2 uint32) []arm64.SysReg {
	return []arm64.SysReg{arm64.MustSysReg(op0, op1, crn, crm, op2)}
}

// key builds the {high, low} encodings of a pointer authentication key.
// The low half sits at op2 and the high half at op2+1.
func key(crm, op2 uint32) []arm64.SysReg {
	return []arm64.SysReg{
		arm64.MustSysReg(3, 0, 2, crm, op2+1),
		arm64.MustSysReg(3, 0, 2, crm, op2),
	}
}

var catalog = []Entry{
	{ID: IDAA64PFR0, Name: "ID_AA64PFR0_EL1", Section: "D17.2.67", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 4, 0), Since: v100, Fields: pfr0Fields},
	{ID: IDAA64PFR1, Name: "ID_AA64PFR1_EL1", Section: "D17.2.68", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 4, 1), Since: v100, Fields: pfr1Fields},
	{ID: IDAA64ISAR0, Name: "ID_AA64ISAR0_EL1", Section: "D17.2.61", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 6, 0), Since: v100, Fields: isar0Fields},
	{ID: IDAA64ISAR1, Name: "ID_AA64ISAR1_EL1", Section: "D17.2.62", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 6, 1), Since: v100, Fields: isar1Fields},
	{ID: IDAA64ISAR2, Name: "ID_AA64ISAR2_EL1", Section: "D17.2.63", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 6, 2), Since: v100, Fields: isar2Fields},
	{ID: TCR, Name: "TCR_EL1", Section: "D17.2.131", Access: Read,
		Encodings: enc(3, 0, 2, 0, 2), Since: v100, Fields: tcrFields},
	{ID: MIDR, Name: "MIDR_EL1", Section: "D17.2.100", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 0, 0), Since: v110, Fields: midrFields},
	{ID: MPIDR, Name: "MPIDR_EL1", Section: "D17.2.101", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 0, 5), Since: v110, Fields: mpidrFields},
	{ID: REVIDR, Name: "REVIDR_EL1", Section: "D17.2.106", Access: Read, EL0: EL0Emulated,
		Encodings: enc(3, 0, 0, 0, 6), Since: v110},
	{ID: TPIDRRO_EL0, Name: "TPIDRRO_EL0", Section: "D17.2.143", Access: Read | Write, EL0: EL0Read,
		Encodings: enc(3, 3, 13, 0, 3), Since: v110},
	{ID: TPIDR_EL0, Name: "TPIDR_EL0", Section: "D17.2.139", Access: Read | Write, EL0: EL0ReadWrite,
		Encodings: enc(3, 3, 13, 0, 2), Since: v110},
	{ID: TPIDR_EL1, Name: "TPIDR_EL1", Section: "D17.2.140", Access: Read | Write,
		Encodings: enc(3, 0, 13, 0, 4), Since: v110},
	{ID: SCXTNUM_EL0, Name: "SCXTNUM_EL0", Section: "D17.2.121", Access: Read | Write, Requires: NeedCSV2_2,
		Encodings: enc(3, 3, 13, 0, 7), Since: v110},
	{ID: SCXTNUM_EL1, Name: "SCXTNUM_EL1", Section: "D17.2.122", Access: Read | Write, Requires: NeedCSV2_2,
		Encodings: enc(3, 0, 13, 0, 7), Since: v110},
	{ID: SCTLR, Name: "SCTLR_EL1", Section: "D17.2.118", Access: Read | Write,
		Encodings: enc(3, 0, 1, 0, 0), Since: v110, Fields: sctlrFields},

	{ID: APIAKEY, Name: "APIAKEY_EL1", Section: "D17.2.21/22", Access: Read | Write, Requires: NeedPAC,
		Encodings: key(1, 0), Since: v100},
	{ID: APIBKEY, Name: "APIBKEY_EL1", Section: "D17.2.23/24", Access: Read | Write, Requires: NeedPAC,
		Encodings: key(1, 2), Since: v100},
	{ID: APDAKEY, Name: "APDAKEY_EL1", Section: "D17.2.15/16", Access: Read | Write, Requires: NeedPAC,
		Encodings: key(2, 0), Since: v100},
	{ID: APDBKEY, Name: "APDBKEY_EL1", Section: "D17.2.17/18", Access: Read | Write, Requires: NeedPAC,
		Encodings: key(2, 2), Since: v100},
	{ID: APGAKEY, Name: "APGAKEY_EL1", Section: "D17.2.19/20", Access: Read | Write, Requires: NeedPACGA,
		Encodings: key(3, 0), Since: v100},
}
