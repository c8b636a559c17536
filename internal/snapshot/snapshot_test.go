package snapshot

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

type fakeSource struct {
	cpus int
}

func (f fakeSource) Name() string { return "fake" }
func (f fakeSource) NumCPU() int  { return f.cpus }

func (f fakeSource) ReadOnCPU(cpu int, e sysreg.Entry) (sysreg.Value, error) {
	switch {
	case e.ID == sysreg.TCR:
		return sysreg.Value{}, errors.New("not accessible")
	case e.Width() == sysreg.Pair:
		return sysreg.Value{High: uint64(cpu), Low: uint64(e.ID)}, nil
	default:
		return sysreg.Scalar(uint64(cpu)<<8 | uint64(e.ID)), nil
	}
}

func TestCollectRoundTrip(t *testing.T) {
	s, err := Collect(fakeSource{cpus: 2}, Options{Progress: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.CPUs) != 2 {
		t.Fatalf("cpus = %d", len(s.CPUs))
	}
	if len(s.CPUs[1].Errors) != 1 || s.CPUs[1].Errors[0].Register != "TCR_EL1" {
		t.Fatalf("errors = %+v", s.CPUs[1].Errors)
	}

	path := filepath.Join(t.TempDir(), "regs.yaml")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	values, err := loaded.Values(1)
	if err != nil {
		t.Fatal(err)
	}
	if got := values[sysreg.MIDR]; got.Low != 1<<8|uint64(sysreg.MIDR) {
		t.Fatalf("MIDR on cpu 1 = %#x", got.Low)
	}
	if got := values[sysreg.APDBKEY]; got.High != 1 || got.Low != uint64(sysreg.APDBKEY) {
		t.Fatalf("APDBKEY on cpu 1 = %+v", got)
	}
	if _, ok := values[sysreg.TCR]; ok {
		t.Fatal("failed read recorded as a value")
	}
}

func TestCollectSubset(t *testing.T) {
	s, err := Collect(fakeSource{cpus: 1}, Options{Registers: []sysreg.ID{sysreg.IDAA64PFR0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.CPUs[0].Registers) != 1 || s.CPUs[0].Registers[0].Name != "ID_AA64PFR0_EL1" {
		t.Fatalf("registers = %+v", s.CPUs[0].Registers)
	}
	if _, err := Collect(fakeSource{cpus: 1}, Options{Registers: []sysreg.ID{0x7E}}); !errors.Is(err, sysreg.ErrUnknownRegister) {
		t.Fatalf("unknown register: err = %v", err)
	}
	if _, err := Collect(fakeSource{cpus: 0}, Options{}); err == nil {
		t.Fatal("zero CPUs accepted")
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"major":       "version: v2.0.0\ncpus: []\n",
		"newer minor": "version: v1.9.0\ncpus: []\n",
		"not semver":  "version: one\ncpus: []\n",
	}
	for name, doc := range tests {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: decoded", name)
		}
	}
}

func TestValuesRejectsBadRegisters(t *testing.T) {
	tests := []Register{
		{Name: "NOPE_EL1", Value: "0x1"},
		{Name: "TPIDR_EL0", Value: "zz"},
		{Name: "APIAKEY_EL1", Value: "0x1"},
		{Name: "TPIDR_EL0", Value: "0x1", High: "0x2"},
	}
	for _, r := range tests {
		s := &Snapshot{Version: sysreg.Version, CPUs: []CPU{{CPU: 0, Registers: []Register{r}}}}
		if _, err := s.Values(0); err == nil {
			t.Errorf("Values accepted %+v", r)
		}
	}
	s := &Snapshot{Version: sysreg.Version}
	if _, err := s.Values(3); err == nil {
		t.Error("missing cpu accepted")
	}
}

func TestBackendReplays(t *testing.T) {
	doc := `version: v1.0.0
cpus:
  - cpu: 0
    registers:
      - name: ID_AA64ISAR1_EL1
        value: "0x0000000000000010"
      - name: APIAKEY_EL1
        value: "0x2"
        high: "0x1"
`
	s, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Backend("replay", 0)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := sysreg.Lookup(sysreg.APIAKEY)
	v, err := b.Read(e)
	if err != nil {
		t.Fatal(err)
	}
	if v.High != 1 || v.Low != 2 {
		t.Fatalf("APIAKEY_EL1 = %+v", v)
	}

	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	again, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := again.CPUs[0].Registers[1]; got.High != "0x1" {
		t.Fatalf("re-encoded high half = %q", got.High)
	}
}

type fakeExecSource struct {
	fakeSource
}

func (f fakeExecSource) ExecOnCPU(cpu int, i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	if i == command.PACDB {
		return command.InstrArgs{}, regserver.ErrUnsupported
	}
	return command.InstrArgs{Value: args.Value | uint64(i+1)<<48 | uint64(cpu)<<56, Modifier: args.Modifier}, nil
}

func TestCollectPACSamples(t *testing.T) {
	opts := Options{Registers: []sysreg.ID{sysreg.MIDR}, PAC: true}
	s, err := Collect(fakeExecSource{fakeSource{cpus: 2}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	rec := s.CPUs[1]
	if len(rec.PAC) != len(SampleInstrs)-1 {
		t.Fatalf("pac = %+v", rec.PAC)
	}
	if len(rec.Errors) != 1 || rec.Errors[0].Register != "PACDB" {
		t.Fatalf("errors = %+v", rec.Errors)
	}
	first := rec.PAC[0]
	if first.Instr != "PACIA" || first.Value != "0x0000000012345678" || first.Modifier != "47" || first.Result != "0x0101000012345678" {
		t.Fatalf("PACIA sample = %+v", first)
	}

	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := loaded.Backend("replay", 1)
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.Exec(command.PACGA, command.InstrArgs{Value: SampleValue, Modifier: SampleModifier})
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(SampleValue) | 5<<48 | 1<<56; out.Value != want {
		t.Fatalf("replayed PACGA = %#x, want %#x", out.Value, want)
	}
	if _, err := b.Exec(command.PACDB, command.InstrArgs{Value: SampleValue, Modifier: SampleModifier}); !errors.Is(err, regserver.ErrUnsupported) {
		t.Fatalf("unrecorded PACDB: err = %v", err)
	}
}

func TestCollectPACNeedsOptIn(t *testing.T) {
	s, err := Collect(fakeExecSource{fakeSource{cpus: 1}}, Options{Registers: []sysreg.ID{sysreg.MIDR}})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.CPUs[0].PAC) != 0 {
		t.Fatalf("pac collected without the option: %+v", s.CPUs[0].PAC)
	}

	// A source that cannot execute is not an error.
	s, err = Collect(fakeSource{cpus: 1}, Options{Registers: []sysreg.ID{sysreg.MIDR}, PAC: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.CPUs[0].PAC) != 0 || len(s.CPUs[0].Errors) != 0 {
		t.Fatalf("cpu = %+v", s.CPUs[0])
	}
}

func TestOneCPUExec(t *testing.T) {
	read := func(e sysreg.Entry) (sysreg.Value, error) { return sysreg.Scalar(1), nil }
	if _, ok := OneCPU("plain", read, nil).(InstrSource); ok {
		t.Fatal("OneCPU without exec is an InstrSource")
	}
	src := OneCPU("exec", read, func(i command.Instr, a command.InstrArgs) (command.InstrArgs, error) {
		return command.InstrArgs{Value: a.Value + 1, Modifier: a.Modifier}, nil
	})
	is, ok := src.(InstrSource)
	if !ok {
		t.Fatal("OneCPU with exec is not an InstrSource")
	}
	out, err := is.ExecOnCPU(0, command.PACIA, command.InstrArgs{Value: 1})
	if err != nil || out.Value != 2 {
		t.Fatalf("ExecOnCPU = %+v, %v", out, err)
	}
}

func TestSamplesRejectBadEntries(t *testing.T) {
	for _, p := range []PACSample{
		{Instr: "XPACI", Value: "0x1", Modifier: "0", Result: "0x1"},
		{Instr: "PACIA", Value: "zz", Modifier: "0", Result: "0x1"},
		{Instr: "PACIA", Value: "0x1", Modifier: "0", Result: ""},
	} {
		s := &Snapshot{Version: sysreg.Version, CPUs: []CPU{{CPU: 0, PAC: []PACSample{p}}}}
		if _, err := s.Backend("bad", 0); err == nil {
			t.Errorf("Backend accepted %+v", p)
		}
	}
}
