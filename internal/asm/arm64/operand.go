package arm64

import (
	"fmt"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

// gprIndex maps every general-purpose operand name accepted by the assembler
// to the 5-bit register field. sp, wsp, xzr and wzr all encode as 31.
var gprIndex = map[string]uint32{
	"x0": 0, "w0": 0,
	"x1": 1, "w1": 1,
	"x2": 2, "w2": 2,
	"x3": 3, "w3": 3,
	"x4": 4, "w4": 4,
	"x5": 5, "w5": 5,
	"x6": 6, "w6": 6,
	"x7": 7, "w7": 7,
	"x8": 8, "w8": 8,
	"x9": 9, "w9": 9,
	"x10": 10, "w10": 10,
	"x11": 11, "w11": 11,
	"x12": 12, "w12": 12,
	"x13": 13, "w13": 13,
	"x14": 14, "w14": 14,
	"x15": 15, "w15": 15,
	"x16": 16, "w16": 16,
	"x17": 17, "w17": 17,
	"x18": 18, "w18": 18,
	"x19": 19, "w19": 19,
	"x20": 20, "w20": 20,
	"x21": 21, "w21": 21,
	"x22": 22, "w22": 22,
	"x23": 23, "w23": 23,
	"x24": 24, "w24": 24,
	"x25": 25, "w25": 25,
	"x26": 26, "w26": 26,
	"x27": 27, "w27": 27,
	"x28": 28, "w28": 28,
	"x29": 29, "w29": 29,
	"x30": 30, "w30": 30,
	"xzr": 31, "wzr": 31,
	"sp": 31, "wsp": 31,
	"fp": 29, "lr": 30,
}

// UnknownOperandError is returned when an operand name has no register field.
type UnknownOperandError struct {
	Name string
}

func (e *UnknownOperandError) Error() string {
	return fmt.Sprintf("arm64 asm: unknown operand register %q", e.Name)
}

// OperandIndex resolves a general-purpose register name to its field value.
func OperandIndex(name string) (uint32, error) {
	idx, ok := gprIndex[strings.ToLower(name)]
	if !ok {
		return 0, &UnknownOperandError{Name: name}
	}
	return idx, nil
}

// MustOperandIndex is like OperandIndex but panics for unknown names.
func MustOperandIndex(name string) uint32 {
	idx, err := OperandIndex(name)
	if err != nil {
		panic(err)
	}
	return idx
}

// OperandNames returns every name OperandIndex accepts.
func OperandNames() []string {
	names := make([]string, 0, len(gprIndex))
	for name := range gprIndex {
		names = append(names, name)
	}
	return names
}

// BindOperand assigns the register called name to v for the rest of the
// emission. Fragments referring to v pick up the register when they emit.
func BindOperand(v asm.Variable, name string) asm.Fragment {
	return fragmentFunc(func(ctx asm.Context) error {
		idx, err := OperandIndex(name)
		if err != nil {
			return err
		}
		return ctx.BindOperand(v, idx)
	})
}

func resolveOperand(ctx asm.Context, v asm.Variable) (uint32, error) {
	idx, ok := ctx.Operand(v)
	if !ok {
		return 0, fmt.Errorf("arm64 asm: operand %d has no register bound", v)
	}
	return idx, nil
}
