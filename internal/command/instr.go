package command

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// Instr is a pointer authentication instruction the privileged side runs on
// caller operands, with the keys of its own exception level.
type Instr uint8

const (
	PACIA Instr = iota
	PACIB
	PACDA
	PACDB
	PACGA
	AUTIA
	AUTIB
	AUTDA
	AUTDB

	numInstrs
)

var instrNames = [numInstrs]string{"PACIA", "PACIB", "PACDA", "PACDB", "PACGA", "AUTIA", "AUTIB", "AUTDA", "AUTDB"}

// Instrs lists every instruction in command order.
func Instrs() []Instr {
	out := make([]Instr, numInstrs)
	for i := range out {
		out[i] = Instr(i)
	}
	return out
}

func (i Instr) Valid() bool { return i < numInstrs }

func (i Instr) String() string {
	if !i.Valid() {
		return fmt.Sprintf("Instr(%d)", uint8(i))
	}
	return instrNames[i]
}

// InstrByName looks an instruction up case-insensitively.
func InstrByName(name string) (Instr, bool) {
	for i, n := range instrNames {
		if strings.EqualFold(n, name) {
			return Instr(i), true
		}
	}
	return 0, false
}

// Key is the key register whose value the instruction uses.
func (i Instr) Key() sysreg.ID {
	switch i {
	case PACIA, AUTIA:
		return sysreg.APIAKEY
	case PACIB, AUTIB:
		return sysreg.APIBKEY
	case PACDA, AUTDA:
		return sysreg.APDAKEY
	case PACDB, AUTDB:
		return sysreg.APDBKEY
	default:
		return sysreg.APGAKEY
	}
}

// InstrArgs is the in/out payload of an Exec command. The privileged side
// replaces Value with the instruction result: the signed or authenticated
// pointer, or the PACGA code in the upper 32 bits.
type InstrArgs struct {
	Value    uint64
	Modifier uint64
}

// InstrArgsSize is the wire size of InstrArgs: value then modifier, both
// little endian.
const InstrArgsSize = 16

func (a InstrArgs) Marshal() []byte {
	buf := make([]byte, InstrArgsSize)
	binary.LittleEndian.PutUint64(buf[0:], a.Value)
	binary.LittleEndian.PutUint64(buf[8:], a.Modifier)
	return buf
}

func UnmarshalInstrArgs(buf []byte) (InstrArgs, error) {
	if len(buf) != InstrArgsSize {
		return InstrArgs{}, fmt.Errorf("instruction payload is %d bytes, want %d", len(buf), InstrArgsSize)
	}
	return InstrArgs{
		Value:    binary.LittleEndian.Uint64(buf[0:]),
		Modifier: binary.LittleEndian.Uint64(buf[8:]),
	}, nil
}

// Instruction commands sit directly above the register commands, in
// [Limit, InstrLimit).
const instrBase = Limit

// InstrLimit is one past the highest instruction command.
const InstrLimit = instrBase + ID(numInstrs)

// ForInstr returns the command executing i.
func ForInstr(i Instr) (ID, error) {
	if !i.Valid() {
		return 0, fmt.Errorf("instruction %d: %w", uint8(i), ErrMalformed)
	}
	return instrBase + ID(i), nil
}

// MustForInstr is ForInstr for the declared instructions.
func MustForInstr(i Instr) ID {
	c, err := ForInstr(i)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ID) IsInstr() bool { return c >= instrBase && c < InstrLimit }

// Instr returns the instruction of an instruction command.
func (c ID) Instr() Instr { return Instr(c - instrBase) }

// ParseInstr is Parse for instruction commands.
func ParseInstr(c ID) (Instr, error) {
	if !c.IsInstr() {
		return 0, fmt.Errorf("command 0x%03x is not an instruction: %w", uint16(c), ErrMalformed)
	}
	return c.Instr(), nil
}
