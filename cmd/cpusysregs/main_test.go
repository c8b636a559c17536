package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/cpusysregs/internal/snapshot"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

const testSnapshot = `version: v1.1.0
cpus:
  - cpu: 0
    registers:
      - name: ID_AA64PFR0_EL1
        value: "0x0010000000000011"
      - name: ID_AA64PFR1_EL1
        value: "0x0000000000000001"
      - name: ID_AA64ISAR0_EL1
        value: "0x0"
      - name: ID_AA64ISAR1_EL1
        value: "0x0"
      - name: ID_AA64ISAR2_EL1
        value: "0x0"
      - name: TPIDR_EL0
        value: "0x0000000000001000"
`

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("stderr:\n%s", stderr.String())
		}
	})
	return &app{ctx: context.Background(), stdout: &stdout, stderr: &stderr}, &stdout
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regs.yaml")
	if err := os.WriteFile(path, []byte(testSnapshot), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEncode(t *testing.T) {
	for _, tt := range []struct {
		args []string
		want []string
	}{
		{[]string{"encode", "MIDR_EL1"}, []string{"0xD5380000", "mrs x0, S3_0_C0_C0_0"}},
		{[]string{"encode", "-msr", "-rt", "x1", "TPIDR_EL0"}, []string{"0xD51BD041", "msr S3_3_C13_C0_2, x1"}},
		{[]string{"encode", "3,3,13,0,2"}, []string{"0xD53BD040", "TPIDR_EL0"}},
		{[]string{"encode", "S3_0_C0_C0_0"}, []string{"0xD5380000", "MIDR_EL1"}},
		{[]string{"encode", "-rt", "xzr", "S3_7_C15_C15_7"}, []string{"0xD53FFFFF"}},
	} {
		a, out := testApp(t)
		if err := a.run(tt.args); err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		for _, w := range tt.want {
			if !strings.Contains(out.String(), w) {
				t.Errorf("%v: output %q lacks %q", tt.args, out.String(), w)
			}
		}
	}
}

func TestEncodePairPrintsBothHalves(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"encode", "APIAKEY_EL1"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], ".hi") || !strings.Contains(lines[1], ".lo") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestEncodeRejects(t *testing.T) {
	for _, args := range [][]string{
		{"encode", "NOT_A_REGISTER"},
		{"encode", "4,0,0,0,0"},
		{"encode", "-rt", "x32", "MIDR_EL1"},
		{"encode", "S3_0_0_C0_0"},
	} {
		a, _ := testApp(t)
		if err := a.run(args); err == nil {
			t.Errorf("%v accepted", args)
		}
	}
}

func TestDecode(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"decode", "0xD5380000", "0xD51BD05F"}); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, w := range []string{"mrs x0, S3_0_C0_C0_0  MIDR_EL1", "msr S3_3_C13_C0_2, xzr  TPIDR_EL0"} {
		if !strings.Contains(got, w) {
			t.Errorf("output %q lacks %q", got, w)
		}
	}

	a, _ = testApp(t)
	if err := a.run([]string{"decode", "0xD65F03C0"}); err == nil {
		t.Fatal("RET decoded as a system register move")
	}
}

func TestCatalog(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"catalog", "-check"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), sysreg.Version) {
		t.Fatalf("output = %q", out.String())
	}

	a, out = testApp(t)
	if err := a.run([]string{"catalog", "-yaml"}); err != nil {
		t.Fatal(err)
	}
	var v catalogView
	if err := yaml.Unmarshal(out.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if len(v.Registers) != len(sysreg.All()) {
		t.Fatalf("catalog has %d registers, want %d", len(v.Registers), len(sysreg.All()))
	}
	for _, r := range v.Registers {
		if r.Name == "APIAKEY_EL1" && (r.Width != "pair" || len(r.Encodings) != 2) {
			t.Fatalf("APIAKEY_EL1 = %+v", r)
		}
	}
}

func TestList(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"list"}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out.String(), "\n"); n != len(sysreg.All()) {
		t.Fatalf("list printed %d rows, want %d", n, len(sysreg.All()))
	}

	a, out = testApp(t)
	if err := a.run([]string{"-snapshot", writeSnapshot(t), "list", "-available"}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out.String(), "\n"); n != 6 {
		t.Fatalf("available printed %d rows, want 6:\n%s", n, out.String())
	}
}

func TestGetSetFromSnapshot(t *testing.T) {
	snap := writeSnapshot(t)

	a, out := testApp(t)
	if err := a.run([]string{"-snapshot", snap, "get", "TPIDR_EL0"}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "0x0000000000001000" {
		t.Fatalf("get = %q", got)
	}

	a, out = testApp(t)
	if err := a.run([]string{"-snapshot", snap, "get", "-b", "TPIDR_EL0"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), strings.Repeat("0", 51)+"1"+strings.Repeat("0", 12)) {
		t.Fatalf("binary = %q", out.String())
	}

	// Writes go to the in-memory replay only.
	a, _ = testApp(t)
	if err := a.run([]string{"-snapshot", snap, "set", "TPIDR_EL0", "0x2000"}); err != nil {
		t.Fatal(err)
	}

	a, _ = testApp(t)
	if err := a.run([]string{"-snapshot", snap, "set", "MIDR_EL1", "1"}); err == nil {
		t.Fatal("write to a read-only register accepted")
	}
	a, _ = testApp(t)
	if err := a.run([]string{"-snapshot", snap, "set", "TPIDR_EL0", "1", "2"}); err == nil {
		t.Fatal("pair value accepted for a single register")
	}
}

func TestShowFields(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"-snapshot", writeSnapshot(t), "show", "ID_AA64PFR0_EL1"}); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "ID_AA64PFR0_EL1 = ") || !strings.Contains(got, "RME") {
		t.Fatalf("show = %q", got)
	}
}

func TestFeatures(t *testing.T) {
	a, out := testApp(t)
	if err := a.run([]string{"-snapshot", writeSnapshot(t), "features", "-raw"}); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, w := range []string{"ID_AA64PFR0_EL1", "BTI|RME", "rme:     v1"} {
		if !strings.Contains(got, w) {
			t.Errorf("output %q lacks %q", got, w)
		}
	}
}

func TestCollectFromSnapshot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "again.yaml")
	a, _ := testApp(t)
	if err := a.run([]string{"-snapshot", writeSnapshot(t), "collect", "-o", out, "-reg", "TPIDR_EL0,MIDR_EL1"}); err != nil {
		t.Fatal(err)
	}
	s, err := snapshot.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.CPUs) != 1 {
		t.Fatalf("cpus = %d", len(s.CPUs))
	}
	vals, err := s.Values(0)
	if err != nil {
		t.Fatal(err)
	}
	if vals[sysreg.TPIDR_EL0].Low != 0x1000 {
		t.Fatalf("TPIDR_EL0 = %#x", vals[sysreg.TPIDR_EL0].Low)
	}
	// MIDR_EL1 was not recorded, so the replay fails and the error is kept.
	if len(s.CPUs[0].Errors) != 1 || s.CPUs[0].Errors[0].Register != "MIDR_EL1" {
		t.Fatalf("errors = %+v", s.CPUs[0].Errors)
	}
}

func TestUsage(t *testing.T) {
	a, _ := testApp(t)
	if err := a.run(nil); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
	a, _ = testApp(t)
	if err := a.run([]string{"frobnicate"}); err == nil {
		t.Fatal("unknown command accepted")
	}
}
