// Package sysreg is the catalog of Arm64 system registers reachable through
// the cpusysregs control channel.
package sysreg

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/tinyrange/cpusysregs/internal/asm/arm64"
)

// Version is the catalog version. Register IDs are append-only within a
// major version.
const Version = "v1.1.0"

// ID identifies one register. Bit 7 tags pair registers; the low seven bits
// are the index inside the class.
type ID uint8

const pairFlag ID = 0x80

// MaxIndex is the highest index available in either class.
const MaxIndex = 0x7F

func SingleID(index uint8) ID { return ID(index) &^ pairFlag }
func PairID(index uint8) ID { return ID(index) | pairFlag }

func (id ID) IsPair() bool { return id&pairFlag != 0 }
func (id ID) Index() uint8 { return uint8(id &^ pairFlag) }
func (id ID) Width() Width {
	if id.IsPair() {
		return Pair
	}
	return Single
}

func (id ID) String() string {
	if e, ok := Lookup(id); ok {
		return e.Name
	}
	return fmt.Sprintf("ID(0x%02x)", uint8(id))
}

// Width is the payload size class of a register.
type Width uint8

const (
	Single Width = 8
	Pair   Width = 16
)

// Size returns the payload size in bytes.
func (w Width) Size() int { return int(w) }

func (w Width) String() string {
	switch w {
	case Single:
		return "single"
	case Pair:
		return "pair"
	default:
		return fmt.Sprintf("Width(%d)", uint8(w))
	}
}

// Access is the set of directions the privileged side permits.
type Access uint8

const (
	Read Access = 1 << iota
	Write
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Read | Write:
		return "read/write"
	case Write:
		return "write"
	default:
		return "none"
	}
}

// Requirement lists CPU features the privileged side checks before touching
// the register.
type Requirement uint8

const (
	NeedPAC Requirement = 1 << iota
	NeedPACGA
	NeedCSV2_2
)

func (r Requirement) String() string {
	var parts []string
	if r&NeedPAC != 0 {
		parts = append(parts, "PAC")
	}
	if r&NeedPACGA != 0 {
		parts = append(parts, "PACGA")
	}
	if r&NeedCSV2_2 != 0 {
		parts = append(parts, "CSV2_2")
	}
	return strings.Join(parts, ",")
}

// EL0Access describes whether unprivileged code can reach the register
// without the kernel component.
type EL0Access uint8

const (
	EL0None EL0Access = iota
	// EL0Emulated registers trap and are emulated by Linux when HWCAP_CPUID
	// is advertised.
	EL0Emulated
	EL0Read
	EL0ReadWrite
)

func (a EL0Access) String() string {
	switch a {
	case EL0Emulated:
		return "emulated"
	case EL0Read:
		return "read"
	case EL0ReadWrite:
		return "read/write"
	default:
		return "none"
	}
}

// Entry describes one catalog register.
type Entry struct {
	ID       ID
	Name     string
	Section  string // Arm Architecture Reference Manual section
	Access   Access
	Requires Requirement
	EL0      EL0Access
	// Encodings holds one encoding for single registers and {high, low} for
	// pairs.
	Encodings []arm64.SysReg
	Since     string
	Fields    []Field
}

func (e Entry) Width() Width   { return e.ID.Width() }
func (e Entry) Readable() bool { return e.Access&Read != 0 }
func (e Entry) Writable() bool { return e.Access&Write != 0 }

// Encoding returns the encoding of a single register.
func (e Entry) Encoding() arm64.SysReg { return e.Encodings[0] }

// PairEncodings returns the high and low encodings of a pair register.
func (e Entry) PairEncodings() (hi, lo arm64.SysReg) { return e.Encodings[0], e.Encodings[1] }

// Value is a register value. Single registers only use Low.
type Value struct {
	High uint64
	Low  uint64
}

func Scalar(v uint64) Value { return Value{Low: v} }

// Format prints v as one hex word, or high:low for pairs.
func (v Value) Format(w Width) string {
	if w == Pair {
		return fmt.Sprintf("0x%016X:0x%016X", v.High, v.Low)
	}
	return fmt.Sprintf("0x%016X", v.Low)
}

// ParseValue accepts any strconv base-prefixed integer, or HIGH:LOW for pairs.
func ParseValue(w Width, s string) (Value, error) {
	if w == Pair {
		hi, lo, ok := strings.Cut(s, ":")
		if !ok {
			return Value{}, fmt.Errorf("pair value %q must be HIGH:LOW", s)
		}
		h, err := strconv.ParseUint(strings.TrimSpace(hi), 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse high half: %w", err)
		}
		l, err := strconv.ParseUint(strings.TrimSpace(lo), 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse low half: %w", err)
		}
		return Value{High: h, Low: l}, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return Value{}, fmt.Errorf("parse value: %w", err)
	}
	return Scalar(v), nil
}

// MarshalPayload encodes v in the channel layout: low for singles, high then
// low for pairs, little-endian.
func MarshalPayload(w Width, v Value) []byte {
	buf := make([]byte, w.Size())
	if w == Pair {
		binary.LittleEndian.PutUint64(buf[0:], v.High)
		binary.LittleEndian.PutUint64(buf[8:], v.Low)
		return buf
	}
	binary.LittleEndian.PutUint64(buf, v.Low)
	return buf
}

// UnmarshalPayload is the inverse of MarshalPayload. The length must match w.
func UnmarshalPayload(w Width, buf []byte) (Value, error) {
	if len(buf) != w.Size() {
		return Value{}, fmt.Errorf("sysreg: %s payload is %d bytes, want %d", w, len(buf), w.Size())
	}
	if w == Pair {
		return Value{
			High: binary.LittleEndian.Uint64(buf[0:]),
			Low:  binary.LittleEndian.Uint64(buf[8:]),
		}, nil
	}
	return Scalar(binary.LittleEndian.Uint64(buf)), nil
}

// Lookup returns the catalog entry for id.
func Lookup(id ID) (Entry, bool) {
	for _, e := range catalog {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ByName finds an entry by register name, ignoring case.
func ByName(name string) (Entry, bool) {
	for _, e := range catalog {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}

// ByEncoding finds the entry that owns reg. half is 0 for singles and for
// the high half of a pair, 1 for the low half.
func ByEncoding(reg arm64.SysReg) (e Entry, half int, ok bool) {
	for _, entry := range catalog {
		for i, enc := range entry.Encodings {
			if enc == reg {
				return entry, i, true
			}
		}
	}
	return Entry{}, 0, false
}

// Get is Lookup reporting a CatalogError for unknown ids.
func Get(id ID) (Entry, error) {
	e, ok := Lookup(id)
	if !ok {
		return Entry{}, &CatalogError{Op: "lookup", ID: id, Err: ErrUnknownRegister}
	}
	return e, nil
}

// All returns every entry in catalog order.
func All() []Entry {
	return append([]Entry(nil), catalog...)
}
