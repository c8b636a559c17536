package asm

import (
	"fmt"
)

type Value interface {
}

type Immediate int64

var (
	_ Value = Immediate(0)
)

// Variable names a value whose machine register is decided by the emitting
// context rather than by the fragment that uses it.
type Variable int

var (
	_ Value = Variable(0)
)

type Register Variable

var (
	_ Value = Register(0)
)

type Context interface {
	EmitBytes(data []byte)

	GetLabel(label Label) (int, bool)
	SetLabel(label Label)

	// BindOperand records the 5-bit register index chosen for v.
	BindOperand(v Variable, index uint32) error
	// Operand returns the register index previously bound to v.
	Operand(v Variable) (uint32, bool)
}

type Fragment interface {
	Emit(ctx Context) error
}

type Group []Fragment

var (
	_ Fragment = Group{}
)

func (g Group) Emit(ctx Context) error {
	for _, frag := range g {
		if err := frag.Emit(ctx); err != nil {
			return err
		}
	}
	return nil
}

type Label string

type labelDef struct {
	label Label
}

func MarkLabel(label Label) Fragment {
	return &labelDef{label: label}
}

func (l *labelDef) Emit(ctx Context) error {
	if _, exists := ctx.GetLabel(l.label); exists {
		return fmt.Errorf("label %q already defined", l.label)
	}
	ctx.SetLabel(l.label)
	return nil
}

// Program is the finished machine code for a fragment.
type Program struct {
	code []byte
}

func (p Program) Bytes() []byte {
	return append([]byte(nil), p.code...)
}

func (p Program) Len() int {
	return len(p.code)
}

func (p Program) Clone() Program {
	return Program{
		code: append([]byte(nil), p.code...),
	}
}

func NewProgram(code []byte) Program {
	return Program{
		code: append([]byte(nil), code...),
	}
}
