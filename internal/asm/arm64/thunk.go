package arm64

import (
	"github.com/tinyrange/cpusysregs/internal/asm"
)

// Operand variables used by the register access thunks. The AAPCS64 calling
// convention decides which machine register each one lands in.
const (
	ThunkValue asm.Variable = 100 + iota
	ThunkScratch
)

// ReadThunk returns the value of reg in X0.
//
//	mrs x0, reg
//	ret
func ReadThunk(reg SysReg) asm.Fragment {
	return asm.Group{
		BindOperand(ThunkValue, "x0"),
		MrsTo(ThunkValue, reg),
		Ret(),
	}
}

// WriteThunk stores X0 into reg.
func WriteThunk(reg SysReg) asm.Fragment {
	return asm.Group{
		BindOperand(ThunkValue, "x0"),
		MsrFrom(reg, ThunkValue),
		ISB(),
		Ret(),
	}
}

// ReadPairThunk stores {hi, lo} at the 16-byte buffer addressed by X0, high
// half first. A nil buffer is a no-op.
func ReadPairThunk(hi, lo SysReg) asm.Fragment {
	const done asm.Label = "done"
	return asm.Group{
		BindOperand(ThunkScratch, "x1"),
		JumpIfZero(Reg64(X0), done),
		MrsTo(ThunkScratch, hi),
		MovToMemory64(Mem(Reg64(X0)), Reg64(X1)),
		MrsTo(ThunkScratch, lo),
		MovToMemory64(Mem(Reg64(X0)).WithDisp(8), Reg64(X1)),
		asm.MarkLabel(done),
		Ret(),
	}
}

// WritePairThunk loads {hi, lo} from the buffer addressed by X0.
func WritePairThunk(hi, lo SysReg) asm.Fragment {
	const done asm.Label = "done"
	return asm.Group{
		BindOperand(ThunkScratch, "x1"),
		JumpIfZero(Reg64(X0), done),
		MovFromMemory64(Reg64(X1), Mem(Reg64(X0))),
		MsrFrom(hi, ThunkScratch),
		MovFromMemory64(Reg64(X1), Mem(Reg64(X0)).WithDisp(8)),
		MsrFrom(lo, ThunkScratch),
		ISB(),
		asm.MarkLabel(done),
		Ret(),
	}
}

// InstrThunk runs op on the {value, modifier} buffer addressed by X0 and
// stores the result over value. A nil buffer is a no-op.
//
//	ldr x1, [x0]
//	ldr x2, [x0, #8]
//	pacia x1, x2
//	str x1, [x0]
func InstrThunk(op PACOp) asm.Fragment {
	const done asm.Label = "done"
	return asm.Group{
		JumpIfZero(Reg64(X0), done),
		MovFromMemory64(Reg64(X1), Mem(Reg64(X0))),
		MovFromMemory64(Reg64(X2), Mem(Reg64(X0)).WithDisp(8)),
		PAC(op, Reg64(X1), Reg64(X2)),
		MovToMemory64(Mem(Reg64(X0)), Reg64(X1)),
		asm.MarkLabel(done),
		Ret(),
	}
}
