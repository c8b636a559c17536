package arm64

import (
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

// PACOp selects a pointer authentication instruction. The first eight values
// are the opcode field of the one-source data processing form.
type PACOp uint8

const (
	OpPACIA PACOp = iota
	OpPACIB
	OpPACDA
	OpPACDB
	OpAUTIA
	OpAUTIB
	OpAUTDA
	OpAUTDB
	OpPACGA
)

var pacOpNames = [...]string{"pacia", "pacib", "pacda", "pacdb", "autia", "autib", "autda", "autdb", "pacga"}

func (op PACOp) String() string {
	if int(op) < len(pacOpNames) {
		return pacOpNames[op]
	}
	return fmt.Sprintf("PACOp(%d)", uint8(op))
}

const (
	// PACIA Xd, Xn|SP with the opcode in bits 12..10.
	pacDataBase uint32 = 0xDAC10000
	// PACGA Xd, Xn, Xm|SP.
	pacgaBase uint32 = 0x9AC03000

	pacOpcodeShift = 10
	pacRmShift     = 16
	pacRnShift     = 5
)

// EncodePAC builds PACxx/AUTxx Xd, Xn: Xd holds the pointer and Xn the
// modifier. OpPACGA takes three registers and goes through EncodePACGA.
func EncodePAC(op PACOp, rd, rn uint32) uint32 {
	if op > OpAUTDB {
		panic(fmt.Sprintf("arm64 asm: %s is not a one-source instruction", op))
	}
	checkRegField("Rd", rd)
	checkRegField("Rn", rn)
	return pacDataBase | uint32(op)<<pacOpcodeShift | rn<<pacRnShift | rd
}

// EncodePACGA builds PACGA Xd, Xn, Xm: the code for Xn under modifier Xm, in
// the upper 32 bits of Xd.
func EncodePACGA(rd, rn, rm uint32) uint32 {
	checkRegField("Rd", rd)
	checkRegField("Rn", rn)
	checkRegField("Rm", rm)
	return pacgaBase | rm<<pacRmShift | rn<<pacRnShift | rd
}

func checkRegField(name string, v uint32) {
	if v > sysRegRtMax {
		panic(&EncodingRangeError{Field: name, Value: v, Max: sysRegRtMax})
	}
}

// PAC emits op on ptr with modifier. For OpPACGA ptr is both the source and
// the destination.
func PAC(op PACOp, ptr, modifier Reg) asm.Fragment {
	return fragmentFunc(func(ctx asm.Context) error {
		for _, r := range []Reg{ptr, modifier} {
			if err := r.validate(); err != nil {
				return err
			}
		}
		c, err := requireContext(ctx)
		if err != nil {
			return err
		}
		if op == OpPACGA {
			c.emit32(EncodePACGA(ptr.Index(), ptr.Index(), modifier.Index()))
			return nil
		}
		if op > OpPACGA {
			return fmt.Errorf("arm64 asm: unknown pointer authentication op %d", op)
		}
		c.emit32(EncodePAC(op, ptr.Index(), modifier.Index()))
		return nil
	})
}
