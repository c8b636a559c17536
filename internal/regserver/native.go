//go:build (linux || darwin) && arm64

package regserver

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/tinyrange/cpusysregs/internal/asm/arm64"
	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// NativeOptions configures a NativeBackend.
type NativeOptions struct {
	// AllowWrites enables MSR thunks for registers writable at EL0.
	AllowWrites bool
}

type thunkKey struct {
	id    sysreg.ID
	write bool
}

// NativeBackend executes MRS/MSR thunks in the current process. Only
// registers reachable at EL0 are served: everything else would fault.
type NativeBackend struct {
	allowWrites bool
	emulatedIDs bool

	mu       sync.Mutex
	thunks   map[thunkKey]arm64.Func
	instrs   map[command.Instr]arm64.Func
	releases []func()
}

// NewNativeBackend prepares a backend for this host.
func NewNativeBackend(opts NativeOptions) (*NativeBackend, error) {
	return &NativeBackend{
		allowWrites: opts.AllowWrites,
		emulatedIDs: emulatedIDRegisters(),
		thunks:      make(map[thunkKey]arm64.Func),
		instrs:      make(map[command.Instr]arm64.Func),
	}, nil
}

func (b *NativeBackend) Name() string { return "native" }

// Close unmaps every compiled thunk.
func (b *NativeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, release := range b.releases {
		release()
	}
	b.releases = nil
	b.thunks = make(map[thunkKey]arm64.Func)
	b.instrs = make(map[command.Instr]arm64.Func)
	return nil
}

func (b *NativeBackend) reachable(e sysreg.Entry, write bool) error {
	switch e.EL0 {
	case sysreg.EL0Emulated:
		if write {
			return fmt.Errorf("%s is read-only at EL0: %w", e.Name, ErrDenied)
		}
		if !b.emulatedIDs {
			return fmt.Errorf("%s: kernel does not emulate ID register reads: %w", e.Name, ErrUnsupported)
		}
	case sysreg.EL0Read:
		if write {
			return fmt.Errorf("%s is read-only at EL0: %w", e.Name, ErrDenied)
		}
	case sysreg.EL0ReadWrite:
		if write && !b.allowWrites {
			return fmt.Errorf("%s: native writes disabled: %w", e.Name, ErrDenied)
		}
	default:
		return fmt.Errorf("%s is not accessible at EL0: %w", e.Name, ErrDenied)
	}
	return nil
}

func (b *NativeBackend) Supports(e sysreg.Entry) bool {
	return b.reachable(e, false) == nil
}

func (b *NativeBackend) thunk(e sysreg.Entry, write bool) (arm64.Func, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := thunkKey{e.ID, write}
	if fn, ok := b.thunks[key]; ok {
		return fn, nil
	}

	var frag = arm64.ReadThunk(e.Encoding())
	switch {
	case e.Width() == sysreg.Pair && write:
		frag = arm64.WritePairThunk(e.PairEncodings())
	case e.Width() == sysreg.Pair:
		frag = arm64.ReadPairThunk(e.PairEncodings())
	case write:
		frag = arm64.WriteThunk(e.Encoding())
	}

	fn, release, err := arm64.Compile(frag)
	if err != nil {
		return arm64.Func{}, fmt.Errorf("compile %s thunk: %w", e.Name, err)
	}
	b.thunks[key] = fn
	b.releases = append(b.releases, release)
	return fn, nil
}

func (b *NativeBackend) Read(e sysreg.Entry) (sysreg.Value, error) {
	if err := b.reachable(e, false); err != nil {
		return sysreg.Value{}, err
	}
	fn, err := b.thunk(e, false)
	if err != nil {
		return sysreg.Value{}, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.Width() == sysreg.Pair {
		buf := new([2]uint64)
		fn.Call(unsafe.Pointer(buf))
		return sysreg.Value{High: buf[0], Low: buf[1]}, nil
	}
	return sysreg.Scalar(uint64(fn.Call())), nil
}

func (b *NativeBackend) Write(e sysreg.Entry, v sysreg.Value) error {
	if err := b.reachable(e, true); err != nil {
		return err
	}
	fn, err := b.thunk(e, true)
	if err != nil {
		return err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.Width() == sysreg.Pair {
		buf := &[2]uint64{v.High, v.Low}
		fn.Call(unsafe.Pointer(buf))
		return nil
	}
	fn.Call(v.Low)
	return nil
}

// NumCPU returns the number of CPUs ReadOnCPU accepts.
func (b *NativeBackend) NumCPU() int { return runtime.NumCPU() }

// ReadOnCPU reads e with the calling thread pinned to cpu.
func (b *NativeBackend) ReadOnCPU(cpu int, e sysreg.Entry) (sysreg.Value, error) {
	if err := b.reachable(e, false); err != nil {
		return sysreg.Value{}, err
	}
	fn, err := b.thunk(e, false)
	if err != nil {
		return sysreg.Value{}, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	restore, err := pinToCPU(cpu)
	if err != nil {
		return sysreg.Value{}, err
	}
	defer restore()

	if e.Width() == sysreg.Pair {
		buf := new([2]uint64)
		fn.Call(unsafe.Pointer(buf))
		return sysreg.Value{High: buf[0], Low: buf[1]}, nil
	}
	return sysreg.Scalar(uint64(fn.Call())), nil
}

var pacOps = map[command.Instr]arm64.PACOp{
	command.PACIA: arm64.OpPACIA,
	command.PACIB: arm64.OpPACIB,
	command.PACDA: arm64.OpPACDA,
	command.PACDB: arm64.OpPACDB,
	command.PACGA: arm64.OpPACGA,
	command.AUTIA: arm64.OpAUTIA,
	command.AUTIB: arm64.OpAUTIB,
	command.AUTDA: arm64.OpAUTDA,
	command.AUTDB: arm64.OpAUTDB,
}

func (b *NativeBackend) instrThunk(i command.Instr) (arm64.Func, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fn, ok := b.instrs[i]; ok {
		return fn, nil
	}
	op, ok := pacOps[i]
	if !ok {
		return arm64.Func{}, fmt.Errorf("%s: %w", i, ErrUnsupported)
	}
	fn, release, err := arm64.Compile(arm64.InstrThunk(op))
	if err != nil {
		return arm64.Func{}, fmt.Errorf("compile %s thunk: %w", i, err)
	}
	b.instrs[i] = fn
	b.releases = append(b.releases, release)
	return fn, nil
}

// Exec runs i with the EL0 keys. Callers must check the PAC features first:
// the instructions are undefined without them.
func (b *NativeBackend) Exec(i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	fn, err := b.instrThunk(i)
	if err != nil {
		return command.InstrArgs{}, err
	}
	buf := &[2]uint64{args.Value, args.Modifier}
	fn.Call(unsafe.Pointer(buf))
	return command.InstrArgs{Value: buf[0], Modifier: args.Modifier}, nil
}

// ExecOnCPU is Exec with the calling thread pinned to cpu.
func (b *NativeBackend) ExecOnCPU(cpu int, i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	fn, err := b.instrThunk(i)
	if err != nil {
		return command.InstrArgs{}, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	restore, err := pinToCPU(cpu)
	if err != nil {
		return command.InstrArgs{}, err
	}
	defer restore()

	buf := &[2]uint64{args.Value, args.Modifier}
	fn.Call(unsafe.Pointer(buf))
	return command.InstrArgs{Value: buf[0], Modifier: args.Modifier}, nil
}
