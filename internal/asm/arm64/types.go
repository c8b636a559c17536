package arm64

import (
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

// Register identifiers exposed to callers. The value is the 5-bit register
// field used in instruction encodings.
const (
	X0 asm.Variable = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
	// SP and XZR share field value 31; the instruction decides which one it means.
	SP
)

const XZR = SP

type operandSize uint8

const (
	size64 operandSize = 64
)

// Reg stores the logical register plus the width used by the instruction.
type Reg struct {
	id   asm.Variable
	size operandSize
}

func (r Reg) validate() error {
	if r.id < X0 || r.id > SP {
		return fmt.Errorf("arm64: invalid register %d", r.id)
	}
	switch r.size {
	case size64:
		return nil
	default:
		return fmt.Errorf("arm64: unsupported register width %d", r.size)
	}
}

// Index returns the 5-bit register field value.
func (r Reg) Index() uint32 { return uint32(r.id) }

func Reg64(id asm.Variable) Reg { return Reg{id: id, size: size64} }

// Memory represents [base + imm] addressing with an unsigned, size-scaled
// displacement.
type Memory struct {
	base    Reg
	hasBase bool
	disp    int32
}

func Mem(base Reg) Memory {
	return Memory{base: base, hasBase: true}
}

func (m Memory) WithDisp(disp int32) Memory {
	m.disp = disp
	return m
}

func (m Memory) validate() error {
	if !m.hasBase {
		return fmt.Errorf("arm64 asm: memory reference missing base register")
	}
	if err := m.base.validate(); err != nil {
		return err
	}
	return nil
}

type fragmentFunc func(asm.Context) error

func (f fragmentFunc) Emit(ctx asm.Context) error {
	return f(ctx)
}
