//go:build (darwin || linux) && arm64

package arm64

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/tinyrange/cpusysregs/internal/asm"
	"golang.org/x/sys/unix"
)

// Func represents a compiled assembly function that can be called with arguments.
type Func struct {
	entry uintptr
	call  func(...any) uintptr
	prog  asm.Program
}

var _ asm.NativeFunc = Func{}

// Call executes the compiled assembly with the provided arguments.
func (fn Func) Call(args ...any) uintptr {
	if fn.call == nil {
		panic("asm.Func: call on zero value")
	}
	return fn.call(args...)
}

// Entry returns the entrypoint address of the compiled fragment.
func (fn Func) Entry() uintptr {
	return fn.entry
}

// Program returns a deep copy of the Program backing the compiled function.
func (fn Func) Program() asm.Program {
	return fn.prog.Clone()
}

// Compile emits f into executable memory. The returned release function
// unmaps it; the Func must not be called afterwards.
func Compile(f asm.Fragment) (Func, func(), error) {
	prog, err := EmitProgram(f)
	if err != nil {
		return Func{}, nil, fmt.Errorf("emit assembly program: %w", err)
	}

	entry, release, err := createAssemblyTrampoline(prog.Bytes())
	if err != nil {
		return Func{}, nil, fmt.Errorf("prepare assembly: %w", err)
	}

	call := func(args ...any) uintptr {
		if len(args) > maxAssemblyArguments {
			panic(fmt.Sprintf("assembly call accepts at most %d arguments, got %d", maxAssemblyArguments, len(args)))
		}
		// The trampoline always loads X0-X7.
		buf := make([]uintptr, maxAssemblyArguments)
		for idx, arg := range args {
			value, err := assemblyArgValue(arg)
			if err != nil {
				panic(err)
			}
			buf[idx] = value
		}
		return callAssemblyEntryWithArgs(entry, &buf[0])
	}

	return Func{
		entry: entry,
		call:  call,
		prog:  prog.Clone(),
	}, release, nil
}

const maxAssemblyArguments = 8 // AAPCS64 uses X0-X7 for arguments

func assemblyArgValue(arg any) (uintptr, error) {
	switch v := arg.(type) {
	case nil:
		return 0, nil
	case uintptr:
		return v, nil
	case unsafe.Pointer:
		return uintptr(v), nil
	case int:
		return uintptr(v), nil
	case uint32:
		return uintptr(v), nil
	case uint64:
		return uintptr(v), nil
	}

	val := reflect.ValueOf(arg)
	switch val.Kind() {
	case reflect.Pointer, reflect.UnsafePointer:
		if val.IsNil() {
			return 0, nil
		}
		return uintptr(val.Pointer()), nil
	}

	return 0, fmt.Errorf("unsupported argument type %T", arg)
}

func createAssemblyTrampoline(code []byte) (uintptr, func(), error) {
	size := len(code)
	if size == 0 {
		return 0, nil, fmt.Errorf("empty code")
	}

	pageSize := unix.Getpagesize()
	allocSize := ((size + pageSize - 1) / pageSize) * pageSize

	mem, err := unix.Mmap(-1, 0, allocSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, nil, fmt.Errorf("mmap assembly region: %w", err)
	}
	release := true
	defer func() {
		if release {
			_ = unix.Munmap(mem)
		}
	}()

	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return 0, nil, fmt.Errorf("mprotect code region: %w", err)
	}

	base := uintptr(unsafe.Pointer(&mem[0]))

	// Instruction and data caches are not coherent on arm64.
	clearInstructionCache(base, uintptr(size))

	release = false

	return base, func() {
		_ = unix.Munmap(mem)
	}, nil
}

// callAssemblyEntryWithArgs loads X0-X7 from args[0:8] and branches to entry.
func callAssemblyEntryWithArgs(entry uintptr, args *uintptr) uintptr

// clearInstructionCache cleans the data cache and invalidates the
// instruction cache for [addr, addr+size).
func clearInstructionCache(addr uintptr, size uintptr)
