package asm

// NativeFunc is code mapped executable in the current process. Register
// thunks receive the value buffer address as their only argument.
type NativeFunc interface {
	// Call places args in the argument registers, runs the code and returns
	// the first result register.
	Call(args ...any) uintptr

	Entry() uintptr

	// Program returns a copy of the code that was mapped.
	Program() Program
}
