// Package command maps catalog registers to control channel command IDs and
// to the request codes each platform driver expects.
package command

import (
	"errors"
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// Direction is the transfer direction of a command.
type Direction uint8

const (
	Get Direction = iota
	Set
	// Exec runs an instruction: the payload goes in and comes back rewritten.
	Exec
)

func (d Direction) String() string {
	switch d {
	case Set:
		return "set"
	case Exec:
		return "exec"
	default:
		return "get"
	}
}

// ID is a command identifier: pair<<9 | set<<8 | index. Single-register
// commands occupy [0x000, 0x200), pair commands [0x200, 0x400) and
// instruction commands [0x400, InstrLimit).
type ID uint16

const (
	indexMask ID = 0x7F
	setBit    ID = 1 << 8
	pairBit   ID = 1 << 9
	reserved  ID = 0x80

	// Limit is one past the highest register command ID.
	Limit ID = 0x400
)

var ErrMalformed = errors.New("malformed command id")

// For returns the command moving reg in direction dir.
func For(reg sysreg.ID, dir Direction) (ID, error) {
	if dir == Exec {
		return 0, fmt.Errorf("register %s: exec is not a transfer: %w", reg, ErrMalformed)
	}
	e, ok := sysreg.Lookup(reg)
	if !ok {
		return 0, &sysreg.CatalogError{Op: dir.String(), ID: reg, Err: sysreg.ErrUnknownRegister}
	}
	if err := e.CheckAccess(dir == Set); err != nil {
		return 0, err
	}
	return compose(reg, dir), nil
}

// MustFor is For for registers known to be valid.
func MustFor(reg sysreg.ID, dir Direction) ID {
	c, err := For(reg, dir)
	if err != nil {
		panic(err)
	}
	return c
}

func compose(reg sysreg.ID, dir Direction) ID {
	c := ID(reg.Index())
	if reg.IsPair() {
		c |= pairBit
	}
	if dir == Set {
		c |= setBit
	}
	return c
}

// Parse recovers the register and direction of cmd, checking both against the
// catalog. Instruction commands go through ParseInstr.
func Parse(cmd ID) (sysreg.ID, Direction, error) {
	if cmd >= Limit || cmd&reserved != 0 {
		return 0, Get, fmt.Errorf("command 0x%03x: %w", uint16(cmd), ErrMalformed)
	}
	reg, dir := cmd.Register(), cmd.Direction()
	e, ok := sysreg.Lookup(reg)
	if !ok {
		return 0, Get, &sysreg.CatalogError{Op: dir.String(), ID: reg, Err: sysreg.ErrUnknownRegister}
	}
	if err := e.CheckAccess(dir == Set); err != nil {
		return 0, Get, err
	}
	return reg, dir, nil
}

// Register returns the register ID encoded in c without consulting the
// catalog.
func (c ID) Register() sysreg.ID {
	if c.IsPair() {
		return sysreg.PairID(uint8(c & indexMask))
	}
	return sysreg.SingleID(uint8(c & indexMask))
}

func (c ID) Direction() Direction {
	if c.IsInstr() {
		return Exec
	}
	if c&setBit != 0 {
		return Set
	}
	return Get
}

func (c ID) IsPair() bool { return c < Limit && c&pairBit != 0 }

// PayloadSize is 16 for pair and instruction commands and 8 otherwise.
func (c ID) PayloadSize() int {
	if c.IsInstr() {
		return InstrArgsSize
	}
	if c.IsPair() {
		return sysreg.Pair.Size()
	}
	return sysreg.Single.Size()
}

func (c ID) String() string {
	if c.IsInstr() {
		return fmt.Sprintf("exec %s", c.Instr())
	}
	return fmt.Sprintf("%s %s", c.Direction(), c.Register())
}
