package arm64

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/tinyrange/cpusysregs/internal/asm"
)

// ErrNativeUnsupported is returned by Compile on hosts that cannot run
// AArch64 code in-process.
var ErrNativeUnsupported = errors.New("arm64 asm: native execution unsupported on " + runtime.GOOS + "/" + runtime.GOARCH)

// EmitProgram lowers a fragment into machine code for AArch64.
func EmitProgram(fragment asm.Fragment) (asm.Program, error) {
	if fragment == nil {
		return asm.Program{}, fmt.Errorf("arm64 asm: fragment is nil")
	}

	ctx := newContext()
	if err := fragment.Emit(ctx); err != nil {
		return asm.Program{}, err
	}
	return ctx.finalize()
}

// EmitBytes is a convenience helper returning the raw instruction stream for a fragment.
func EmitBytes(fragment asm.Fragment) ([]byte, error) {
	prog, err := EmitProgram(fragment)
	if err != nil {
		return nil, err
	}
	return prog.Bytes(), nil
}
