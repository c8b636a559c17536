package feature

type idReg uint8

const (
	regPFR0 idReg = iota
	regPFR1
	regISAR0
	regISAR1
	regISAR2
)

func (r Raw) field(reg idReg, lsb uint) uint64 {
	var v uint64
	switch reg {
	case regPFR0:
		v = r.PFR0
	case regPFR1:
		v = r.PFR1
	case regISAR0:
		v = r.ISAR0
	case regISAR1:
		v = r.ISAR1
	case regISAR2:
		v = r.ISAR2
	}
	return (v >> lsb) & 0xF
}

type cond struct {
	reg idReg
	lsb uint
	min uint64
	// below excludes values >= below when nonzero (15 means "not implemented"
	// for the FP fields).
	below uint64
}

func (c cond) holds(r Raw) bool {
	v := r.field(c.reg, c.lsb)
	return v >= c.min && (c.below == 0 || v < c.below)
}

func atLeast(reg idReg, lsb uint, min uint64) cond { return cond{reg: reg, lsb: lsb, min: min} }

// namedFeature is satisfied when any of its conditions hold.
type namedFeature struct {
	name  string
	anyOf []cond
}

func pauth(api, apa, apa3 uint64) []cond {
	return []cond{atLeast(regISAR1, 8, api), atLeast(regISAR1, 4, apa), atLeast(regISAR2, 12, apa3)}
}

// Armv9-A FEAT_* names that can be decided from the five catalog ID registers.
var namedFeatures = []namedFeature{
	{"FEAT_AES", []cond{atLeast(regISAR0, 4, 1)}},
	{"FEAT_AMUv1", []cond{atLeast(regPFR0, 44, 1)}},
	{"FEAT_AMUv1p1", []cond{atLeast(regPFR0, 44, 2)}},
	{"FEAT_BF16", []cond{atLeast(regISAR1, 44, 1)}},
	{"FEAT_BTI", []cond{atLeast(regPFR1, 0, 1)}},
	{"FEAT_CONSTPACFIELD", []cond{atLeast(regISAR2, 24, 1)}},
	{"FEAT_CRC32", []cond{atLeast(regISAR0, 16, 1)}},
	{"FEAT_CSV2", []cond{atLeast(regPFR0, 56, 1)}},
	{"FEAT_CSV2_1p1", []cond{atLeast(regPFR1, 32, 1)}},
	{"FEAT_CSV2_1p2", []cond{atLeast(regPFR1, 32, 2)}},
	{"FEAT_CSV2_2", []cond{atLeast(regPFR0, 56, 2)}},
	{"FEAT_CSV2_3", []cond{atLeast(regPFR0, 56, 3)}},
	{"FEAT_CSV3", []cond{atLeast(regPFR0, 60, 1)}},
	{"FEAT_DGH", []cond{atLeast(regISAR1, 48, 1)}},
	{"FEAT_DIT", []cond{atLeast(regPFR0, 48, 1)}},
	{"FEAT_DotProd", []cond{atLeast(regISAR0, 44, 1)}},
	{"FEAT_DoubleFault", []cond{atLeast(regPFR0, 28, 2)}},
	{"FEAT_DPB", []cond{atLeast(regISAR1, 0, 1)}},
	{"FEAT_DPB2", []cond{atLeast(regISAR1, 0, 2)}},
	{"FEAT_EBF16", []cond{atLeast(regISAR1, 44, 2)}},
	{"FEAT_EPAC", pauth(2, 2, 2)},
	{"FEAT_FCMA", []cond{atLeast(regISAR1, 16, 1)}},
	{"FEAT_FHM", []cond{atLeast(regISAR0, 48, 1)}},
	{"FEAT_FlagM", []cond{atLeast(regISAR0, 52, 1)}},
	{"FEAT_FlagM2", []cond{atLeast(regISAR0, 52, 2)}},
	{"FEAT_FP", []cond{{reg: regPFR0, lsb: 16, min: 0, below: 15}}},
	{"FEAT_FP16", []cond{{reg: regPFR0, lsb: 16, min: 1, below: 15}}},
	{"FEAT_FPAC", pauth(4, 4, 4)},
	{"FEAT_FPACCOMBINE", pauth(5, 5, 5)},
	{"FEAT_FRINTTS", []cond{atLeast(regISAR1, 32, 1)}},
	{"FEAT_HBC", []cond{atLeast(regISAR2, 20, 1)}},
	{"FEAT_I8MM", []cond{atLeast(regISAR1, 52, 1)}},
	{"FEAT_JSCVT", []cond{atLeast(regISAR1, 12, 1)}},
	{"FEAT_LRCPC", []cond{atLeast(regISAR1, 20, 1)}},
	{"FEAT_LRCPC2", []cond{atLeast(regISAR1, 20, 2)}},
	{"FEAT_LS64", []cond{atLeast(regISAR1, 60, 1)}},
	{"FEAT_LS64_V", []cond{atLeast(regISAR1, 60, 2)}},
	{"FEAT_LS64_ACCDATA", []cond{atLeast(regISAR1, 60, 3)}},
	{"FEAT_LSE", []cond{atLeast(regISAR0, 20, 2)}},
	{"FEAT_MOPS", []cond{atLeast(regISAR2, 16, 1)}},
	{"FEAT_MPAM", []cond{atLeast(regPFR0, 40, 1), atLeast(regPFR1, 16, 1)}},
	{"FEAT_MTE", []cond{atLeast(regPFR1, 8, 1)}},
	{"FEAT_MTE2", []cond{atLeast(regPFR1, 8, 2)}},
	{"FEAT_MTE3", []cond{atLeast(regPFR1, 8, 3)}},
	{"FEAT_NMI", []cond{atLeast(regPFR1, 36, 1)}},
	{"FEAT_PACIMP", []cond{atLeast(regISAR1, 28, 1), atLeast(regISAR1, 8, 1)}},
	{"FEAT_PACQARMA3", []cond{atLeast(regISAR2, 8, 1), atLeast(regISAR2, 12, 1)}},
	{"FEAT_PACQARMA5", []cond{atLeast(regISAR1, 24, 1), atLeast(regISAR1, 4, 1)}},
	{"FEAT_PAuth", pauth(1, 1, 1)},
	{"FEAT_PAuth2", pauth(3, 3, 3)},
	{"FEAT_PMULL", []cond{atLeast(regISAR0, 4, 2)}},
	{"FEAT_RAS", []cond{atLeast(regPFR0, 28, 1)}},
	{"FEAT_RASv1p1", []cond{atLeast(regPFR1, 12, 1)}},
	{"FEAT_RDM", []cond{atLeast(regISAR0, 28, 1)}},
	{"FEAT_RME", []cond{atLeast(regPFR0, 52, 1)}},
	{"FEAT_RNG", []cond{atLeast(regISAR0, 60, 1)}},
	{"FEAT_RNG_TRAP", []cond{atLeast(regPFR1, 28, 1)}},
	{"FEAT_RPRES", []cond{atLeast(regISAR2, 4, 1)}},
	{"FEAT_SB", []cond{atLeast(regISAR1, 36, 1)}},
	{"FEAT_SEL2", []cond{atLeast(regPFR0, 36, 1)}},
	{"FEAT_SHA1", []cond{atLeast(regISAR0, 8, 1)}},
	{"FEAT_SHA256", []cond{atLeast(regISAR0, 12, 1)}},
	{"FEAT_SHA512", []cond{atLeast(regISAR0, 12, 2)}},
	{"FEAT_SHA3", []cond{atLeast(regISAR0, 32, 1)}},
	{"FEAT_SM3", []cond{atLeast(regISAR0, 36, 1)}},
	{"FEAT_SM4", []cond{atLeast(regISAR0, 40, 1)}},
	{"FEAT_SME", []cond{atLeast(regPFR1, 24, 1)}},
	{"FEAT_SPECRES", []cond{atLeast(regISAR1, 40, 1)}},
	{"FEAT_SSBS", []cond{atLeast(regPFR1, 4, 1)}},
	{"FEAT_SSBS2", []cond{atLeast(regPFR1, 4, 2)}},
	{"FEAT_SVE", []cond{atLeast(regPFR0, 32, 1)}},
	{"FEAT_TLBIOS", []cond{atLeast(regISAR0, 56, 1)}},
	{"FEAT_TLBIRANGE", []cond{atLeast(regISAR0, 56, 2)}},
	{"FEAT_TME", []cond{atLeast(regISAR0, 24, 1)}},
	{"FEAT_WFxT", []cond{atLeast(regISAR2, 0, 2)}},
	{"FEAT_XS", []cond{atLeast(regISAR1, 56, 1)}},
}

// Names lists the FEAT_* identifiers present in raw, in table order.
func Names(raw Raw) []string {
	var out []string
	for _, f := range namedFeatures {
		for _, c := range f.anyOf {
			if c.holds(raw) {
				out = append(out, f.name)
				break
			}
		}
	}
	return out
}

// KnownNames lists every FEAT_* identifier Names can report.
func KnownNames() []string {
	out := make([]string, len(namedFeatures))
	for i, f := range namedFeatures {
		out[i] = f.name
	}
	return out
}
