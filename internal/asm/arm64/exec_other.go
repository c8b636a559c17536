//go:build !((darwin || linux) && arm64)

package arm64

import (
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

// Func is a placeholder; Compile never returns a usable one on this host.
type Func struct {
	prog asm.Program
}

var _ asm.NativeFunc = Func{}

func (fn Func) Call(args ...any) uintptr {
	panic(ErrNativeUnsupported)
}

func (fn Func) Entry() uintptr { return 0 }

func (fn Func) Program() asm.Program { return fn.prog.Clone() }

// Compile still emits f so encoding errors surface the same way everywhere.
func Compile(f asm.Fragment) (Func, func(), error) {
	if _, err := EmitProgram(f); err != nil {
		return Func{}, nil, fmt.Errorf("emit assembly program: %w", err)
	}
	return Func{}, nil, ErrNativeUnsupported
}
