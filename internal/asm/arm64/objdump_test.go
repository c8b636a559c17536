package arm64

import (
	"testing"

	"github.com/tinyrange/cpusysregs/internal/asm"
	"github.com/tinyrange/cpusysregs/internal/asm/testutil"
)

var (
	testMIDR  = MustSysReg(3, 0, 0, 0, 0)
	testTCR   = MustSysReg(3, 0, 2, 0, 2)
	testSCTLR = MustSysReg(3, 0, 1, 0, 0)
	testTPIDR = MustSysReg(3, 3, 13, 0, 2)
	testKeyHi = MustSysReg(3, 0, 2, 1, 1)
	testKeyLo = MustSysReg(3, 0, 2, 1, 0)
)

func TestKitchenSinkDisassemblyARM64(t *testing.T) {
	const result asm.Variable = 1

	var builder armSinkBuilder
	builder.add("mrs_direct", "mrs", Mrs(Reg64(X3), testMIDR), "x3", "midr_el1")
	builder.add("msr_direct", "msr", Msr(testSCTLR, Reg64(X17)), "sctlr_el1", "x17")
	builder.append(BindOperand(result, "x22"))
	builder.add("mrs_bound", "mrs", MrsTo(result, testTCR), "x22", "tcr_el1")
	builder.add("msr_bound", "msr", MsrFrom(testTPIDR, result), "tpidr_el0", "x22")
	builder.add("mrs_xzr", "mrs", Mrs(Reg64(XZR), testMIDR), "xzr")
	builder.add("store64", "str", MovToMemory64(Mem(Reg64(X0)).WithDisp(8), Reg64(X1)), "x1", "[x0, #8]")
	builder.add("load64", "ldr", MovFromMemory64(Reg64(X4), Mem(Reg64(X5))), "x4", "[x5]")
	builder.add("pacib", "pacib", PAC(OpPACIB, Reg64(X9), Reg64(X10)), "x9", "x10")
	builder.add("isb", "isb", ISB())
	builder.add("ret", "ret", Ret())

	prog, err := EmitProgram(builder.fragment())
	if err != nil {
		t.Fatalf("EmitProgram failed: %v", err)
	}

	lines := testutil.DisassembleAArch64(t, prog.Bytes())
	testutil.VerifyExpectations(t, lines, builder.expectations)
}

func TestThunkDisassembly(t *testing.T) {
	prog, err := EmitProgram(ReadPairThunk(testKeyHi, testKeyLo))
	if err != nil {
		t.Fatalf("EmitProgram failed: %v", err)
	}

	lines := testutil.DisassembleAArch64(t, prog.Bytes())
	testutil.VerifyExpectations(t, lines, []testutil.Expectation{
		{Name: "guard", Mnemonic: "cbz", Contains: []string{"x0"}},
		{Name: "read_hi", Mnemonic: "mrs", Contains: []string{"x1"}},
		{Name: "store_hi", Mnemonic: "str", Contains: []string{"x1", "[x0]"}},
		{Name: "read_lo", Mnemonic: "mrs", Contains: []string{"x1"}},
		{Name: "store_lo", Mnemonic: "str", Contains: []string{"x1", "[x0, #8]"}},
		{Name: "ret", Mnemonic: "ret"},
	})
}

func TestInstrThunkDisassembly(t *testing.T) {
	prog, err := EmitProgram(InstrThunk(OpPACGA))
	if err != nil {
		t.Fatalf("EmitProgram failed: %v", err)
	}

	lines := testutil.DisassembleAArch64(t, prog.Bytes())
	testutil.VerifyExpectations(t, lines, []testutil.Expectation{
		{Name: "guard", Mnemonic: "cbz", Contains: []string{"x0"}},
		{Name: "load_value", Mnemonic: "ldr", Contains: []string{"x1", "[x0]"}},
		{Name: "load_modifier", Mnemonic: "ldr", Contains: []string{"x2", "[x0, #8]"}},
		{Name: "sign", Mnemonic: "pacga", Contains: []string{"x1", "x2"}},
		{Name: "store", Mnemonic: "str", Contains: []string{"x1", "[x0]"}},
		{Name: "ret", Mnemonic: "ret"},
	})
}

type armSinkBuilder struct {
	fragments    []asm.Fragment
	expectations []testutil.Expectation
}

func (b *armSinkBuilder) append(frag asm.Fragment) {
	b.fragments = append(b.fragments, frag)
}

func (b *armSinkBuilder) add(name, mnemonic string, frag asm.Fragment, contains ...string) {
	b.append(frag)
	b.expectations = append(b.expectations, testutil.Expectation{
		Name:     name,
		Mnemonic: mnemonic,
		Contains: contains,
	})
}

func (b *armSinkBuilder) fragment() asm.Fragment {
	return asm.Group(b.fragments)
}
