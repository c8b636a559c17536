package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

const pacSnapshot = `version: v1.1.0
cpus:
  - cpu: 0
    registers:
      - name: ID_AA64PFR0_EL1
        value: "0x0"
      - name: ID_AA64PFR1_EL1
        value: "0x0"
      - name: ID_AA64ISAR0_EL1
        value: "0x0"
      - name: ID_AA64ISAR1_EL1
        value: "0x0000000001000010"
      - name: ID_AA64ISAR2_EL1
        value: "0x0"
    pac:
      - instr: PACIA
        value: "0x0000000012345678"
        modifier: "47"
        result: "0x002a000012345678"
`

func writePACSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pac.yaml")
	if err := os.WriteFile(path, []byte(pacSnapshot), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecFromSnapshot(t *testing.T) {
	snap := writePACSnapshot(t)

	a, out := testApp(t)
	if err := a.run([]string{"-snapshot", snap, "exec", "-modifier", "47", "pacia", "0x12345678"}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "0x002A000012345678" {
		t.Fatalf("exec = %q", got)
	}

	for _, args := range [][]string{
		{"-snapshot", snap, "exec", "PACIB", "0x12345678"},
		{"-snapshot", snap, "exec", "XPACI", "1"},
		{"-snapshot", snap, "exec", "PACIA"},
		{"-snapshot", snap, "exec", "PACIA", "zz"},
	} {
		a, _ := testApp(t)
		if err := a.run(args); err == nil {
			t.Errorf("%v accepted", args)
		}
	}

	// No PAC in the ID registers: the instruction would be undefined.
	a, _ = testApp(t)
	if err := a.run([]string{"-snapshot", writeSnapshot(t), "exec", "PACIA", "1"}); err == nil {
		t.Fatal("exec without FEAT_PAuth accepted")
	}
}

func TestPACWithoutFeature(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"-snapshot", writeSnapshot(t), "pac"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("pac printed %d lines:\n%s", len(lines), out.String())
	}
	for _, l := range lines {
		if !strings.HasSuffix(l, "none") {
			t.Errorf("line %q, want none", l)
		}
	}
}

func TestPACFromSnapshot(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"-snapshot", writePACSnapshot(t), "pac"}); err != nil {
		t.Fatal(err)
	}
	for _, l := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		switch {
		case strings.HasPrefix(l, "APIAKEY_EL1"):
			if strings.Contains(l, "none") || strings.Contains(l, "error") {
				t.Errorf("recorded key: %q", l)
			}
		case strings.HasPrefix(l, "APIBKEY_EL1"):
			if !strings.Contains(l, "error:") {
				t.Errorf("unrecorded key: %q", l)
			}
		}
	}
}

func TestPACStatus(t *testing.T) {
	zero := sysreg.Value{}
	key := sysreg.Value{High: 1, Low: 2}
	tests := []struct {
		name string
		s    pacSample
		want string
	}{
		{"no feature", pacSample{}, "none"},
		{"el1 failed", pacSample{supported: true, el1Err: errors.New("denied")}, "error: denied"},
		{"no el0", pacSample{supported: true, el1: 0x2a000012345678, el0Err: errNoEL0}, "0x002a000012345678 (el0 unavailable)"},
		{"inactive", pacSample{supported: true, el0: 0x12345678, el1: 0x2a000012345678}, "inactive"},
		{"distinct", pacSample{supported: true, el0: 0x11000012345678, el1: 0x2a000012345678}, "distinct keys"},
		{"zero key", pacSample{supported: true, el0: 0x2a000012345678, el1: 0x2a000012345678, key: &zero}, "zero"},
		{"same key", pacSample{supported: true, el0: 0x2a000012345678, el1: 0x2a000012345678, key: &key}, "same key"},
		{"unreadable key", pacSample{supported: true, el0: 0x2a000012345678, el1: 0x2a000012345678}, "same key"},
	}
	for _, tt := range tests {
		if got := tt.s.status(); got != tt.want {
			t.Errorf("%s: status = %q, want %q", tt.name, got, tt.want)
		}
	}
}
