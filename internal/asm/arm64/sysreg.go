package arm64

import (
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

// SysRegOp selects between the two system register move instructions.
type SysRegOp uint8

const (
	OpMRS SysRegOp = iota // read: Xt <- sysreg
	OpMSR                 // write: sysreg <- Xt
)

func (op SysRegOp) String() string {
	switch op {
	case OpMRS:
		return "mrs"
	case OpMSR:
		return "msr"
	default:
		return fmt.Sprintf("SysRegOp(%d)", uint8(op))
	}
}

const (
	mrsBase uint32 = 0xD5200000
	msrBase uint32 = 0xD5000000

	// Bits 31..22 common to both forms; bit 21 is L (1 for MRS).
	sysRegClassMask uint32 = 0xFFC00000
	sysRegLBit      uint32 = 1 << 21

	sysRegOp0Shift = 19
	sysRegOp1Shift = 16
	sysRegCrnShift = 12
	sysRegCrmShift = 8
	sysRegOp2Shift = 5

	sysRegOp0Max = 3
	sysRegOp1Max = 7
	sysRegCrnMax = 15
	sysRegCrmMax = 15
	sysRegOp2Max = 7
	sysRegRtMax  = 31
)

// SysReg is the (op0, op1, CRn, CRm, op2) address of a system register. The
// zero value addresses (0,0,0,0,0); every other value comes from NewSysReg so
// each field is known to fit its slot.
type SysReg struct {
	op0, op1, crn, crm, op2 uint8
}

// EncodingRangeError reports a sub-field that does not fit its bit width.
type EncodingRangeError struct {
	Field string
	Value uint32
	Max   uint32
}

func (e *EncodingRangeError) Error() string {
	return fmt.Sprintf("arm64 asm: system register field %s=%d out of range (max %d)", e.Field, e.Value, e.Max)
}

func checkField(name string, value, max uint32) error {
	if value > max {
		return &EncodingRangeError{Field: name, Value: value, Max: max}
	}
	return nil
}

// NewSysReg validates each sub-field against the instruction layout.
func NewSysReg(op0, op1, crn, crm, op2 uint32) (SysReg, error) {
	for _, f := range []struct {
		name       string
		value, max uint32
	}{
		{"op0", op0, sysRegOp0Max},
		{"op1", op1, sysRegOp1Max},
		{"CRn", crn, sysRegCrnMax},
		{"CRm", crm, sysRegCrmMax},
		{"op2", op2, sysRegOp2Max},
	} {
		if err := checkField(f.name, f.value, f.max); err != nil {
			return SysReg{}, err
		}
	}
	return SysReg{op0: uint8(op0), op1: uint8(op1), crn: uint8(crn), crm: uint8(crm), op2: uint8(op2)}, nil
}

// MustSysReg is NewSysReg for static tables; an out-of-range field panics.
func MustSysReg(op0, op1, crn, crm, op2 uint32) SysReg {
	sr, err := NewSysReg(op0, op1, crn, crm, op2)
	if err != nil {
		panic(err)
	}
	return sr
}

func (s SysReg) Op0() uint32 { return uint32(s.op0) }
func (s SysReg) Op1() uint32 { return uint32(s.op1) }
func (s SysReg) CRn() uint32 { return uint32(s.crn) }
func (s SysReg) CRm() uint32 { return uint32(s.crm) }
func (s SysReg) Op2() uint32 { return uint32(s.op2) }

// Bits returns the sub-fields placed at their instruction bit offsets.
func (s SysReg) Bits() uint32 {
	return uint32(s.op0)<<sysRegOp0Shift |
		uint32(s.op1)<<sysRegOp1Shift |
		uint32(s.crn)<<sysRegCrnShift |
		uint32(s.crm)<<sysRegCrmShift |
		uint32(s.op2)<<sysRegOp2Shift
}

// String uses the generic assembler spelling, S3_0_C0_C4_0.
func (s SysReg) String() string {
	return fmt.Sprintf("S%d_%d_C%d_C%d_%d", s.op0, s.op1, s.crn, s.crm, s.op2)
}

// EncodeSysReg builds an MRS or MSR word. rt above 31 is a programming error
// and panics.
func EncodeSysReg(op SysRegOp, reg SysReg, rt uint32) uint32 {
	if rt > sysRegRtMax {
		panic(&EncodingRangeError{Field: "Rt", Value: rt, Max: sysRegRtMax})
	}
	base := mrsBase
	switch op {
	case OpMRS:
	case OpMSR:
		base = msrBase
	default:
		panic(fmt.Sprintf("arm64 asm: unknown system register op %d", op))
	}
	return base | reg.Bits() | rt
}

// DecodeSysReg splits an MRS/MSR (register) word back into its parts.
func DecodeSysReg(word uint32) (SysRegOp, SysReg, uint32, error) {
	if word&sysRegClassMask != msrBase {
		return 0, SysReg{}, 0, fmt.Errorf("arm64 asm: 0x%08x is not an MRS/MSR instruction", word)
	}
	op := OpMSR
	if word&sysRegLBit != 0 {
		op = OpMRS
	}
	reg := SysReg{
		op0: uint8(word >> sysRegOp0Shift & sysRegOp0Max),
		op1: uint8(word >> sysRegOp1Shift & sysRegOp1Max),
		crn: uint8(word >> sysRegCrnShift & sysRegCrnMax),
		crm: uint8(word >> sysRegCrmShift & sysRegCrmMax),
		op2: uint8(word >> sysRegOp2Shift & sysRegOp2Max),
	}
	return op, reg, word & sysRegRtMax, nil
}

// Instruction forges the word for op on reg using the named operand register.
func Instruction(op SysRegOp, reg SysReg, operand string) (uint32, error) {
	rt, err := OperandIndex(operand)
	if err != nil {
		return 0, err
	}
	return EncodeSysReg(op, reg, rt), nil
}

// Mrs reads reg into dst.
func Mrs(dst Reg, reg SysReg) asm.Fragment {
	return sysRegMove(OpMRS, reg, func(asm.Context) (uint32, error) {
		if err := dst.validate(); err != nil {
			return 0, err
		}
		if dst.size != size64 {
			return 0, fmt.Errorf("arm64 asm: MRS requires a 64-bit register")
		}
		return dst.Index(), nil
	})
}

// Msr writes src into reg.
func Msr(reg SysReg, src Reg) asm.Fragment {
	return sysRegMove(OpMSR, reg, func(asm.Context) (uint32, error) {
		if err := src.validate(); err != nil {
			return 0, err
		}
		if src.size != size64 {
			return 0, fmt.Errorf("arm64 asm: MSR requires a 64-bit register")
		}
		return src.Index(), nil
	})
}

// MrsTo reads reg into whichever register the context bound to v.
func MrsTo(v asm.Variable, reg SysReg) asm.Fragment {
	return sysRegMove(OpMRS, reg, func(ctx asm.Context) (uint32, error) {
		return resolveOperand(ctx, v)
	})
}

// MsrFrom writes the register the context bound to v into reg.
func MsrFrom(reg SysReg, v asm.Variable) asm.Fragment {
	return sysRegMove(OpMSR, reg, func(ctx asm.Context) (uint32, error) {
		return resolveOperand(ctx, v)
	})
}

func sysRegMove(op SysRegOp, reg SysReg, operand func(asm.Context) (uint32, error)) asm.Fragment {
	return fragmentFunc(func(ctx asm.Context) error {
		c, err := requireContext(ctx)
		if err != nil {
			return err
		}
		rt, err := operand(ctx)
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, reg, err)
		}
		c.emit32(EncodeSysReg(op, reg, rt))
		return nil
	})
}
