//go:build !((linux || darwin) && arm64)

package regserver

import (
	"fmt"

	"github.com/tinyrange/cpusysregs/internal/asm/arm64"
	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

type NativeOptions struct {
	AllowWrites bool
}

// NativeBackend is unavailable on this host; NewNativeBackend always fails.
type NativeBackend struct{}

func NewNativeBackend(opts NativeOptions) (*NativeBackend, error) {
	return nil, fmt.Errorf("native backend: %w", arm64.ErrNativeUnsupported)
}

func (b *NativeBackend) Name() string { return "native" }
func (b *NativeBackend) Close() error { return nil }
func (b *NativeBackend) NumCPU() int  { return 0 }

func (b *NativeBackend) Read(e sysreg.Entry) (sysreg.Value, error) {
	return sysreg.Value{}, ErrUnsupported
}

func (b *NativeBackend) Write(e sysreg.Entry, v sysreg.Value) error { return ErrUnsupported }

func (b *NativeBackend) ReadOnCPU(cpu int, e sysreg.Entry) (sysreg.Value, error) {
	return sysreg.Value{}, ErrUnsupported
}

func (b *NativeBackend) Supports(e sysreg.Entry) bool { return false }

func (b *NativeBackend) Exec(i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	return command.InstrArgs{}, ErrUnsupported
}

func (b *NativeBackend) ExecOnCPU(cpu int, i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	return command.InstrArgs{}, ErrUnsupported
}
