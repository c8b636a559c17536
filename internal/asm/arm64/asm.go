package arm64

import (
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

func requireContext(ctx asm.Context) (*Context, error) {
	if c, ok := ctx.(*Context); ok {
		return c, nil
	}
	return nil, fmt.Errorf("arm64 asm: unsupported context %T", ctx)
}

func emitWord(word uint32) asm.Fragment {
	return fragmentFunc(func(ctx asm.Context) error {
		c, err := requireContext(ctx)
		if err != nil {
			return err
		}
		c.emit32(word)
		return nil
	})
}

func MovToMemory64(mem Memory, src Reg) asm.Fragment {
	return loadStore(src, mem, true)
}

func MovFromMemory64(dst Reg, mem Memory) asm.Fragment {
	return loadStore(dst, mem, false)
}

func loadStore(reg Reg, mem Memory, store bool) asm.Fragment {
	return fragmentFunc(func(ctx asm.Context) error {
		if err := reg.validate(); err != nil {
			return err
		}
		c, err := requireContext(ctx)
		if err != nil {
			return err
		}
		word, err := encodeLoadStore64(reg, mem, store)
		if err != nil {
			return err
		}
		c.emit32(word)
		return nil
	})
}

// JumpIfZero branches to label when reg holds zero (CBZ).
func JumpIfZero(reg Reg, label asm.Label) asm.Fragment {
	return fragmentFunc(func(ctx asm.Context) error {
		if err := reg.validate(); err != nil {
			return err
		}
		if reg.size != size64 {
			return fmt.Errorf("arm64 asm: CBZ requires a 64-bit register")
		}
		c, err := requireContext(ctx)
		if err != nil {
			return err
		}
		c.emitCBZ(reg, label)
		return nil
	})
}

func Ret() asm.Fragment { return emitWord(wordRet) }

// ISB emits an Instruction Synchronization Barrier. Writes to context
// registers such as SCTLR_EL1 are only guaranteed visible after it.
func ISB() asm.Fragment { return emitWord(wordISB) }
