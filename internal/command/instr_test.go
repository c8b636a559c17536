package command

import (
	"errors"
	"testing"

	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

func TestInstrCommandsAboveRegisters(t *testing.T) {
	seen := map[ID]Instr{}
	for _, i := range Instrs() {
		c, err := ForInstr(i)
		if err != nil {
			t.Fatalf("ForInstr(%s): %v", i, err)
		}
		if c < Limit || c >= InstrLimit {
			t.Errorf("%s: command 0x%03x outside [0x%03x, 0x%03x)", i, uint16(c), uint16(Limit), uint16(InstrLimit))
		}
		if prev, ok := seen[c]; ok {
			t.Fatalf("%s collides with %s", i, prev)
		}
		seen[c] = i

		if !c.IsInstr() || c.IsPair() || c.Direction() != Exec || c.PayloadSize() != InstrArgsSize {
			t.Errorf("%s: IsInstr=%v IsPair=%v dir=%s size=%d", i, c.IsInstr(), c.IsPair(), c.Direction(), c.PayloadSize())
		}
		back, err := ParseInstr(c)
		if err != nil || back != i {
			t.Errorf("ParseInstr(0x%03x) = %s, %v", uint16(c), back, err)
		}
		if _, _, err := Parse(c); !errors.Is(err, ErrMalformed) {
			t.Errorf("register Parse accepted instruction command 0x%03x: %v", uint16(c), err)
		}
	}

	for _, e := range sysreg.All() {
		if MustFor(e.ID, Get).IsInstr() {
			t.Errorf("%s get command reads as an instruction", e.Name)
		}
	}
}

func TestInstrRejects(t *testing.T) {
	if _, err := ForInstr(Instr(200)); !errors.Is(err, ErrMalformed) {
		t.Errorf("ForInstr(200) error = %v", err)
	}
	if _, err := ParseInstr(InstrLimit); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseInstr(InstrLimit) error = %v", err)
	}
	if _, err := For(sysreg.TPIDR_EL0, Exec); !errors.Is(err, ErrMalformed) {
		t.Errorf("For(exec) error = %v", err)
	}
}

func TestInstrNamesAndKeys(t *testing.T) {
	tests := []struct {
		name string
		want Instr
		key  sysreg.ID
	}{
		{"pacia", PACIA, sysreg.APIAKEY},
		{"AUTIB", AUTIB, sysreg.APIBKEY},
		{"PacDa", PACDA, sysreg.APDAKEY},
		{"autdb", AUTDB, sysreg.APDBKEY},
		{"PACGA", PACGA, sysreg.APGAKEY},
	}
	for _, tt := range tests {
		i, ok := InstrByName(tt.name)
		if !ok || i != tt.want || i.Key() != tt.key {
			t.Errorf("InstrByName(%q) = %s key %s", tt.name, i, i.Key())
		}
	}
	if _, ok := InstrByName("XPACI"); ok {
		t.Error("XPACI accepted")
	}
	if got := MustForInstr(PACGA).String(); got != "exec PACGA" {
		t.Errorf("String = %q", got)
	}
}

func TestInstrArgsLayout(t *testing.T) {
	a := InstrArgs{Value: 0x12345678, Modifier: 47}
	buf := a.Marshal()
	if len(buf) != InstrArgsSize || buf[0] != 0x78 || buf[8] != 47 {
		t.Fatalf("payload = % x", buf)
	}
	back, err := UnmarshalInstrArgs(buf)
	if err != nil || back != a {
		t.Fatalf("UnmarshalInstrArgs = %+v, %v", back, err)
	}
	if _, err := UnmarshalInstrArgs(buf[:8]); err == nil {
		t.Fatal("short payload accepted")
	}
}

func TestInstrPlatformCodes(t *testing.T) {
	if got := LinuxRequest(MustForInstr(PACIA)); got != 0xC010F000 {
		t.Errorf("linux PACIA = 0x%08x", got)
	}
	if got := DarwinOption(MustForInstr(PACDB)); got != 0x00AC0103 {
		t.Errorf("darwin PACDB = 0x%08x", got)
	}
	// CTL_CODE(0x22, 0xA04, 0, 0)
	if got := WindowsIoctl(MustForInstr(PACGA)); got != 0x00222810 {
		t.Errorf("windows PACGA = 0x%08x", got)
	}

	for _, i := range Instrs() {
		c := MustForInstr(i)
		if back, err := ParseLinuxRequest(LinuxRequest(c)); err != nil || back != c {
			t.Errorf("linux %s: round trip = 0x%03x, %v", i, uint16(back), err)
		}
		if back, err := ParseDarwinOption(DarwinOption(c), Get); err != nil || back != c {
			t.Errorf("darwin %s: round trip = 0x%03x, %v", i, uint16(back), err)
		}
		if back, err := ParseWindowsIoctl(WindowsIoctl(c)); err != nil || back != c {
			t.Errorf("windows %s: round trip = 0x%03x, %v", i, uint16(back), err)
		}
	}

	if _, err := ParseLinuxRequest(0xC010F0FF); err == nil {
		t.Error("linux instruction 0xFF accepted")
	}
	if _, err := ParseDarwinOption(DarwinOption(MustForInstr(PACIA)), Set); err == nil {
		t.Error("darwin instruction through setsockopt accepted")
	}
	// 0xB00: instruction and set bits together.
	if _, err := ParseWindowsIoctl(0x00222C00); err == nil {
		t.Error("windows instruction with set bit accepted")
	}
}
