//go:build (darwin || linux) && arm64

package arm64

import (
	"runtime"
	"testing"
	"unsafe"
)

func TestCompiledReadWriteThreadPointer(t *testing.T) {
	read, releaseRead, err := Compile(ReadThunk(testTPIDR))
	if err != nil {
		t.Fatalf("Compile read thunk: %v", err)
	}
	defer releaseRead()

	write, releaseWrite, err := Compile(WriteThunk(testTPIDR))
	if err != nil {
		t.Fatalf("Compile write thunk: %v", err)
	}
	defer releaseWrite()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	first := read.Call()
	if second := read.Call(); second != first {
		t.Fatalf("TPIDR_EL0 changed between reads: 0x%x then 0x%x", first, second)
	}

	// Writing the current value back leaves the thread state untouched.
	write.Call(uint64(first))
	if got := read.Call(); got != first {
		t.Fatalf("TPIDR_EL0 after write = 0x%x, want 0x%x", got, first)
	}
}

func TestCompiledPairThunkNilBuffer(t *testing.T) {
	fn, release, err := Compile(ReadPairThunk(testTPIDR, testTPIDR))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer release()

	fn.Call(nil)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	buf := new([2]uint64)
	fn.Call(unsafe.Pointer(buf))
	if buf[0] != buf[1] {
		t.Fatalf("pair halves differ: 0x%x 0x%x", buf[0], buf[1])
	}
}
