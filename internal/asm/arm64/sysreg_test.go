package arm64

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

func TestEncodeSysRegKnownWords(t *testing.T) {
	tests := []struct {
		name string
		op   SysRegOp
		reg  SysReg
		rt   uint32
		want uint32
	}{
		{"mrs x0, id_aa64pfr0_el1", OpMRS, MustSysReg(3, 0, 0, 4, 0), 0, 0xD5380400},
		{"mrs x1, id_aa64isar1_el1", OpMRS, MustSysReg(3, 0, 0, 6, 1), 1, 0xD5380621},
		{"mrs x0, midr_el1", OpMRS, MustSysReg(3, 0, 0, 0, 0), 0, 0xD5380000},
		{"mrs x0, tpidr_el0", OpMRS, MustSysReg(3, 3, 13, 0, 2), 0, 0xD53BD040},
		{"msr tpidr_el0, x0", OpMSR, MustSysReg(3, 3, 13, 0, 2), 0, 0xD51BD040},
		{"msr apiakeylo_el1, x2", OpMSR, MustSysReg(3, 0, 2, 1, 0), 2, 0xD5182102},
		{"mrs xzr, sctlr_el1", OpMRS, MustSysReg(3, 0, 1, 0, 0), 31, 0xD538101F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeSysReg(tt.op, tt.reg, tt.rt); got != tt.want {
				t.Fatalf("EncodeSysReg = 0x%08x, want 0x%08x", got, tt.want)
			}
		})
	}
}

func TestEncodeSysRegOpsDifferOnlyInL(t *testing.T) {
	for bits := uint32(0); bits < 1<<14; bits += 7 {
		reg := MustSysReg(bits>>12&3, bits>>9&7, bits>>5&15, bits>>1&15, bits&7)
		for _, rt := range []uint32{0, 1, 17, 30, 31} {
			mrs := EncodeSysReg(OpMRS, reg, rt)
			msr := EncodeSysReg(OpMSR, reg, rt)
			if diff := mrs ^ msr; diff != sysRegLBit {
				t.Fatalf("%s rt=%d: mrs^msr = 0x%08x, want 0x%08x", reg, rt, diff, sysRegLBit)
			}
		}
	}
}

func TestDecodeSysRegRoundTrip(t *testing.T) {
	for op0 := uint32(0); op0 <= 3; op0++ {
		for op1 := uint32(0); op1 <= 7; op1++ {
			for crn := uint32(0); crn <= 15; crn++ {
				for crm := uint32(0); crm <= 15; crm++ {
					for op2 := uint32(0); op2 <= 7; op2++ {
						reg := MustSysReg(op0, op1, crn, crm, op2)
						for _, op := range []SysRegOp{OpMRS, OpMSR} {
							for _, rt := range []uint32{0, 9, 31} {
								gotOp, gotReg, gotRt, err := DecodeSysReg(EncodeSysReg(op, reg, rt))
								if err != nil {
									t.Fatalf("decode %s %s: %v", op, reg, err)
								}
								if gotOp != op || gotReg != reg || gotRt != rt {
									t.Fatalf("round trip %s %s x%d = %s %s x%d", op, reg, rt, gotOp, gotReg, gotRt)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestDecodeSysRegRejectsOtherInstructions(t *testing.T) {
	for _, word := range []uint32{wordRet, 0x14000000, 0xF9400000, 0xD5400000} {
		if _, _, _, err := DecodeSysReg(word); err == nil {
			t.Errorf("DecodeSysReg(0x%08x) succeeded, want error", word)
		}
	}
}

func TestNewSysRegRange(t *testing.T) {
	tests := []struct {
		name                    string
		op0, op1, crn, crm, op2 uint32
		field                   string
	}{
		{"op0", 4, 0, 0, 0, 0, "op0"},
		{"op1", 0, 8, 0, 0, 0, "op1"},
		{"crn", 0, 0, 16, 0, 0, "CRn"},
		{"crm", 0, 0, 0, 16, 0, "CRm"},
		{"op2", 0, 0, 0, 0, 8, "op2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSysReg(tt.op0, tt.op1, tt.crn, tt.crm, tt.op2)
			var rangeErr *EncodingRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("NewSysReg error = %v, want *EncodingRangeError", err)
			}
			if rangeErr.Field != tt.field {
				t.Fatalf("Field = %q, want %q", rangeErr.Field, tt.field)
			}
		})
	}

	if _, err := NewSysReg(3, 7, 15, 15, 7); err != nil {
		t.Fatalf("NewSysReg at upper bounds: %v", err)
	}
}

func TestEncodeSysRegPanicsOnWideOperand(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("EncodeSysReg with rt=32 did not panic")
		}
	}()
	EncodeSysReg(OpMRS, testMIDR, 32)
}

func TestInstructionUsesOperandName(t *testing.T) {
	word, err := Instruction(OpMRS, testTPIDR, "w7")
	if err != nil {
		t.Fatalf("Instruction: %v", err)
	}
	if want := EncodeSysReg(OpMRS, testTPIDR, 7); word != want {
		t.Fatalf("Instruction = 0x%08x, want 0x%08x", word, want)
	}
	if _, err := Instruction(OpMSR, testTPIDR, "q0"); err == nil {
		t.Fatal("Instruction with vector register succeeded")
	}
}

func TestSymbolicOperandResolvedAtEmit(t *testing.T) {
	const v asm.Variable = 3

	template := MrsTo(v, testMIDR)
	for _, name := range []string{"x0", "x19", "xzr"} {
		code, err := EmitBytes(asm.Group{BindOperand(v, name), template})
		if err != nil {
			t.Fatalf("emit with %s: %v", name, err)
		}
		want := EncodeSysReg(OpMRS, testMIDR, MustOperandIndex(name))
		if got := binary.LittleEndian.Uint32(code); got != want {
			t.Fatalf("bound to %s: got 0x%08x, want 0x%08x", name, got, want)
		}
	}

	if _, err := EmitBytes(template); err == nil {
		t.Fatal("emitting an unbound operand succeeded")
	}
}

func TestBindOperandConflict(t *testing.T) {
	const v asm.Variable = 5
	_, err := EmitBytes(asm.Group{
		BindOperand(v, "x1"),
		BindOperand(v, "x2"),
	})
	if err == nil {
		t.Fatal("rebinding an operand to a different register succeeded")
	}
	if _, err := EmitBytes(asm.Group{BindOperand(v, "x1"), BindOperand(v, "w1"), Ret()}); err != nil {
		t.Fatalf("rebinding to the same register: %v", err)
	}
}

func TestPairThunkLayout(t *testing.T) {
	code, err := EmitBytes(WritePairThunk(testKeyHi, testKeyLo))
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[4*i:])
	}
	want := []uint32{
		0xB4000000 | 6<<5, // cbz x0, +6 instructions
		0xF9400001,        // ldr x1, [x0]
		EncodeSysReg(OpMSR, testKeyHi, 1),
		0xF9400401, // ldr x1, [x0, #8]
		EncodeSysReg(OpMSR, testKeyLo, 1),
		wordISB,
		wordRet,
	}
	if len(words) != len(want) {
		t.Fatalf("thunk has %d words, want %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = 0x%08x, want 0x%08x", i, words[i], want[i])
		}
	}
}
