package sysreg

import "fmt"

// Field is a named bit range of a register. Bit numbers above 63 address the
// high half of a pair.
type Field struct {
	Name   string
	MSB    uint8
	LSB    uint8
	Values map[uint64]string
}

// Width returns the number of bits in the field.
func (f Field) Width() uint8 { return f.MSB - f.LSB + 1 }

// Extract returns the field contents of v.
func (f Field) Extract(v Value) uint64 {
	word, lsb := v.Low, f.LSB
	if f.LSB >= 64 {
		word, lsb = v.High, f.LSB-64
	}
	n := f.Width()
	if n >= 64 {
		return word >> lsb
	}
	return (word >> lsb) & (1<<n - 1)
}

// Meaning names a field value. Fields without a value table print the
// number; unlisted values of tabled fields are reserved.
func (f Field) Meaning(value uint64) string {
	if len(f.Values) == 0 {
		return fmt.Sprintf("%d", value)
	}
	if name, ok := f.Values[value]; ok {
		return name
	}
	return "reserved"
}

var (
	outerCacheability = map[uint64]string{
		0: "Normal memory, Outer Non-cacheable",
		1: "Normal memory, Outer Write-Back Read-Allocate Write-Allocate Cacheable",
		2: "Normal memory, Outer Write-Through Read-Allocate No Write-Allocate Cacheable",
		3: "Normal memory, Outer Write-Back Read-Allocate No Write-Allocate Cacheable",
	}
	innerCacheability = map[uint64]string{
		0: "Normal memory, Inner Non-cacheable",
		1: "Normal memory, Inner Write-Back Read-Allocate Write-Allocate Cacheable",
		2: "Normal memory, Inner Write-Through Read-Allocate No Write-Allocate Cacheable",
		3: "Normal memory, Inner Write-Back Read-Allocate No Write-Allocate Cacheable",
	}
	shareability = map[uint64]string{0: "Non shareable", 2: "Outer shareable", 3: "Inner shareable"}
	elSupport    = map[uint64]string{0: "none", 1: "AArch64-only", 2: "AArch64+32"}
)

func flag(name string, bit uint8) Field {
	return Field{Name: name, MSB: bit, LSB: bit, Values: map[uint64]string{0: "none", 1: name}}
}

func pauthLevels(prefix string) map[uint64]string {
	return map[uint64]string{
		0: "none",
		1: prefix + " PAuth",
		2: prefix + " PAuth+EPAC",
		3: prefix + " PAuth+EPAC+PAuth2",
		4: prefix + " PAuth+EPAC+PAuth2+FPAC",
		5: prefix + " PAuth+EPAC+PAuth2+FPAC+FPACCOMBINE",
	}
}

var pfr0Fields = []Field{
	{"CSV3", 63, 60, map[uint64]string{0: "undefined", 1: "safe"}},
	{"CSV2", 59, 56, map[uint64]string{0: "none", 1: "CSV2", 2: "CSV2_2", 3: "CSV2_3"}},
	{"RME", 55, 52, map[uint64]string{0: "none", 1: "RMEv1"}},
	{"DIT", 51, 48, map[uint64]string{0: "none", 1: "DIT"}},
	{"AMU", 47, 44, map[uint64]string{0: "none", 1: "AMUv1", 2: "AMUv1p1"}},
	{"MPAM", 43, 40, map[uint64]string{0: "v0", 1: "v1"}},
	{"SEL2", 39, 36, map[uint64]string{0: "none", 1: "Secure EL2"}},
	{"SVE", 35, 32, map[uint64]string{0: "none", 1: "SVE"}},
	{"RAS", 31, 28, map[uint64]string{0: "none", 1: "RAS", 2: "RASv1p1"}},
	{"GIC", 27, 24, map[uint64]string{0: "none", 1: "3.0+4.0", 3: "4.1"}},
	{"AdvSIMD", 23, 20, map[uint64]string{0: "basic", 1: "basic+FP16", 15: "none"}},
	{"FP", 19, 16, map[uint64]string{0: "FP", 1: "FP+FP16", 15: "none"}},
	{"EL3", 15, 12, elSupport},
	{"EL2", 11, 8, elSupport},
	{"EL1", 7, 4, map[uint64]string{1: "AArch64-only", 2: "AArch64+32"}},
	{"EL0", 3, 0, map[uint64]string{1: "AArch64-only", 2: "AArch64+32"}},
}

var pfr1Fields = []Field{
	{"NMI", 39, 36, map[uint64]string{0: "none", 1: "NMI"}},
	{"CSV2_frac", 35, 32, map[uint64]string{0: "none", 1: "CSV2_1p1", 2: "CSV2_1p2"}},
	{"RNDR_trap", 31, 28, map[uint64]string{0: "none", 1: "RNG_TRAP"}},
	{"SME", 27, 24, map[uint64]string{0: "none", 1: "SME"}},
	{"MPAM_frac", 19, 16, map[uint64]string{0: "v.0", 1: "v.1"}},
	{"RAS_frac", 15, 12, map[uint64]string{0: "none", 1: "RASv1p1"}},
	{"MTE", 11, 8, map[uint64]string{0: "none", 1: "MTE", 2: "MTE2", 3: "MTE3"}},
	{"SSBS", 7, 4, map[uint64]string{0: "none", 1: "SSBS", 2: "SSBS2"}},
	{"BT", 3, 0, map[uint64]string{0: "none", 1: "BTI"}},
}

var isar0Fields = []Field{
	{"RNDR", 63, 60, map[uint64]string{0: "none", 1: "RNG"}},
	{"TLB", 59, 56, map[uint64]string{0: "none", 1: "TLBIOS", 2: "TLBIOS+TLBIRANGE"}},
	{"TS", 55, 52, map[uint64]string{0: "none", 1: "FlagM", 2: "FlagM2"}},
	{"FHM", 51, 48, map[uint64]string{0: "none", 1: "FHM"}},
	{"DP", 47, 44, map[uint64]string{0: "none", 1: "DotProd"}},
	{"SM4", 43, 40, map[uint64]string{0: "none", 1: "SM4"}},
	{"SM3", 39, 36, map[uint64]string{0: "none", 1: "SM3"}},
	{"SHA3", 35, 32, map[uint64]string{0: "none", 1: "SHA3"}},
	{"RDM", 31, 28, map[uint64]string{0: "none", 1: "RDM"}},
	{"TME", 27, 24, map[uint64]string{0: "none", 1: "TME"}},
	{"Atomic", 23, 20, map[uint64]string{0: "none", 2: "LSE"}},
	{"CRC32", 19, 16, map[uint64]string{0: "none", 1: "CRC32"}},
	{"SHA2", 15, 12, map[uint64]string{0: "none", 1: "SHA256", 2: "SHA256+SHA512"}},
	{"SHA1", 11, 8, map[uint64]string{0: "none", 1: "SHA1"}},
	{"AES", 7, 4, map[uint64]string{0: "none", 1: "AES", 2: "AES+PMULL"}},
}

var isar1Fields = []Field{
	{"LS64", 63, 60, map[uint64]string{0: "none", 1: "LS64", 2: "LS64+LS64_V", 3: "LS64+LS64_V+LS64_ACCDATA"}},
	{"XS", 59, 56, map[uint64]string{0: "none", 1: "XS"}},
	{"I8MM", 55, 52, map[uint64]string{0: "none", 1: "I8MM"}},
	{"DGH", 51, 48, map[uint64]string{0: "none", 1: "DGH"}},
	{"BF16", 47, 44, map[uint64]string{0: "none", 1: "BF16", 2: "EBF16"}},
	{"SPECRES", 43, 40, map[uint64]string{0: "none", 1: "SPECRES"}},
	{"SB", 39, 36, map[uint64]string{0: "none", 1: "SB"}},
	{"FRINTTS", 35, 32, map[uint64]string{0: "none", 1: "FRINTTS"}},
	{"GPI", 31, 28, map[uint64]string{0: "none", 1: "PACIMP"}},
	{"GPA", 27, 24, map[uint64]string{0: "none", 1: "PACQARMA5"}},
	{"LRCPC", 23, 20, map[uint64]string{0: "none", 1: "LRCPC", 2: "LRCPC2"}},
	{"FCMA", 19, 16, map[uint64]string{0: "none", 1: "FCMA"}},
	{"JSCVT", 15, 12, map[uint64]string{0: "none", 1: "JSCVT"}},
	{"API", 11, 8, pauthLevels("IMP")},
	{"APA", 7, 4, pauthLevels("QARMA5")},
	{"DPB", 3, 0, map[uint64]string{0: "none", 1: "DPB", 2: "DPB2"}},
}

var isar2Fields = []Field{
	{"PAC_frac", 27, 24, map[uint64]string{0: "none", 1: "ConstPACField"}},
	{"BC", 23, 20, map[uint64]string{0: "none", 1: "HBC"}},
	{"MOPS", 19, 16, map[uint64]string{0: "none", 1: "MOPS"}},
	{"APA3", 15, 12, pauthLevels("QARMA3")},
	{"GPA3", 11, 8, map[uint64]string{0: "none", 1: "PACQARMA3"}},
	{"RPRES", 7, 4, map[uint64]string{0: "none", 1: "RPRES"}},
	{"WFxT", 3, 0, map[uint64]string{0: "none", 1: "WFxT"}},
}

func hwu(name string, bit uint8, top int) Field {
	return Field{name, bit, bit, map[uint64]string{
		0: fmt.Sprintf("bit%d-reserved", top),
		1: fmt.Sprintf("bit%d-impl-def", top),
	}}
}

var tcrFields = []Field{
	{"DS", 59, 59, map[uint64]string{0: "48-bit addresses", 1: "52-bit addresses"}},
	{"TCMA1", 58, 58, map[uint64]string{0: "none", 1: "unchecked"}},
	{"TCMA0", 57, 57, map[uint64]string{0: "none", 1: "unchecked"}},
	{"E0PD1", 56, 56, map[uint64]string{0: "none", 1: "fault"}},
	{"E0PD0", 55, 55, map[uint64]string{0: "none", 1: "fault"}},
	{"NFD1", 54, 54, map[uint64]string{0: "none", 1: "stage 1 disabled"}},
	{"NFD0", 53, 53, map[uint64]string{0: "none", 1: "stage 1 disabled"}},
	{"TBID1", 52, 52, map[uint64]string{0: "instr+data", 1: "data"}},
	{"TBID0", 51, 51, map[uint64]string{0: "instr+data", 1: "data"}},
	hwu("HWU162", 50, 62),
	hwu("HWU161", 49, 61),
	hwu("HWU160", 48, 60),
	hwu("HWU159", 47, 59),
	hwu("HWU062", 46, 62),
	hwu("HWU061", 45, 61),
	hwu("HWU060", 44, 60),
	hwu("HWU059", 43, 59),
	{"HPD1", 42, 42, map[uint64]string{0: "enabled", 1: "disabled"}},
	{"HPD0", 41, 41, map[uint64]string{0: "enabled", 1: "disabled"}},
	{"HD", 40, 40, map[uint64]string{0: "disabled", 1: "enabled"}},
	{"HA", 39, 39, map[uint64]string{0: "disabled", 1: "enabled"}},
	{"TBI1", 38, 38, map[uint64]string{0: "used", 1: "ignored"}},
	{"TBI0", 37, 37, map[uint64]string{0: "used", 1: "ignored"}},
	{"AS", 36, 36, map[uint64]string{0: "8-bit ASID", 1: "16-bit ASID"}},
	{"IPS", 34, 32, map[uint64]string{
		0: "32 bits, 4 GB", 1: "36 bits, 64 GB", 2: "40 bits, 1 TB", 3: "42 bits, 4 TB",
		4: "44 bits, 16 TB", 5: "48 bits, 256 TB", 6: "52 bits, 4 PB",
	}},
	{"TG1", 31, 30, map[uint64]string{1: "16 kB", 2: "4 kB", 3: "64 kB"}},
	{"SH1", 29, 28, shareability},
	{"ORGN1", 27, 26, outerCacheability},
	{"IRGN1", 25, 24, innerCacheability},
	{"EPD1", 23, 23, map[uint64]string{
		0: "Translation table walks using TTBR1_EL1",
		1: "TLB miss using TTBR1_EL1 generates a Translation fault",
	}},
	{"A1", 22, 22, map[uint64]string{0: "TTBR0_EL1.ASID defines the ASID", 1: "TTBR1_EL1.ASID defines the ASID"}},
	{"T1SZ", 21, 16, nil},
	{"TG0", 15, 14, map[uint64]string{0: "4 kB", 1: "64 kB", 2: "16 kB"}},
	{"SH0", 13, 12, shareability},
	{"ORGN0", 11, 10, outerCacheability},
	{"IRGN0", 9, 8, innerCacheability},
	{"EPD0", 7, 7, map[uint64]string{
		0: "Translation table walks using TTBR0_EL1",
		1: "TLB miss using TTBR0_EL1 generates a Translation fault",
	}},
	{"T0SZ", 5, 0, nil},
}

var midrFields = []Field{
	{"Implementer", 31, 24, map[uint64]string{0x41: "Arm", 0x51: "Qualcomm", 0x61: "Apple", 0xC0: "Ampere"}},
	{"Variant", 23, 20, nil},
	{"Architecture", 19, 16, map[uint64]string{
		1: "v4", 2: "v4T", 3: "v5", 4: "v5T", 5: "v5TE", 6: "v5TEJ", 7: "v6", 15: "By features",
	}},
	{"PartNum", 15, 4, nil},
	{"Revision", 3, 0, nil},
}

var mpidrFields = []Field{
	{"Aff3", 39, 32, nil},
	{"U", 30, 30, map[uint64]string{0: "Multiprocessor", 1: "Uniprocessor"}},
	{"MT", 24, 24, map[uint64]string{0: "Independent perf.", 1: "Interdependent perf."}},
	{"Aff2", 23, 16, nil},
	{"Aff1", 15, 8, nil},
	{"Aff0", 7, 0, nil},
}

func keyEnable(name, key string, bit uint8) Field {
	return Field{name, bit, bit, map[uint64]string{0: key + " key NOT enabled", 1: key + " key enabled"}}
}

var sctlrFields = []Field{
	{"TIDCP", 63, 63, map[uint64]string{0: "none", 1: "trap EL0 access to system registers"}},
	flag("SPINTMASK", 62),
	flag("NMI", 61),
	flag("EnTP2", 60),
	flag("EPAN", 57),
	flag("EnALS", 56),
	flag("EnAS0", 55),
	flag("EnASR", 54),
	flag("TME", 53),
	flag("TME0", 52),
	flag("TMT", 51),
	flag("TMT0", 50),
	{"TWEDEL", 49, 46, nil},
	flag("TWEDEn", 45),
	flag("DSSBS", 44),
	flag("ATA", 43),
	flag("ATA0", 42),
	{"TCF", 41, 40, map[uint64]string{0: "none", 1: "sync", 2: "async", 3: "asymmetric"}},
	{"TCF0", 39, 38, map[uint64]string{0: "none", 1: "sync", 2: "async", 3: "asymmetric"}},
	flag("ITFSB", 37),
	{"BT1", 36, 36, map[uint64]string{
		0: "BTI at EL1: PACIxSP is compatible with BTYPE:11",
		1: "BTI at EL1: PACIxSP NOT compatible with BTYPE:11",
	}},
	{"BT0", 35, 35, map[uint64]string{
		0: "BTI at EL0: PACIxSP is compatible with BTYPE:11",
		1: "BTI at EL0: PACIxSP NOT compatible with BTYPE:11",
	}},
	flag("MSCEn", 33),
	flag("CMOW", 32),
	keyEnable("EnIA", "PACIA", 31),
	keyEnable("EnIB", "PACIB", 30),
	flag("LSMAOE", 29),
	flag("nTLSMD", 28),
	keyEnable("EnDA", "PACDA", 27),
	flag("UCI", 26),
	{"EE", 25, 25, map[uint64]string{0: "TT EL1 is little endian", 1: "TT EL1 is big endian"}},
	{"E0E", 24, 24, map[uint64]string{0: "EL0 data access is little endian", 1: "EL0 data access is big endian"}},
	flag("SPAN", 23),
	flag("EIS", 22),
	flag("IESB", 21),
	flag("TSCTX", 20),
	flag("WXN", 19),
	flag("nTWE", 18),
	flag("nTWI", 16),
	flag("UCT", 15),
	flag("DZE", 14),
	keyEnable("EnDB", "PACDB", 13),
	flag("I", 12),
	flag("EOS", 11),
	flag("EnRCTX", 10),
	flag("UMA", 9),
	flag("SED", 8),
	flag("ITD", 7),
	flag("nAA", 6),
	flag("CP15BEN", 5),
	flag("SA0", 4),
	flag("SA", 3),
	flag("C", 2),
	flag("A", 1),
	flag("M", 0),
}
