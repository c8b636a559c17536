//go:build linux

package regserver

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tinyrange/cpusysregs/internal/feature"
)

// emulatedIDRegisters reports HWCAP_CPUID: the kernel traps and emulates
// MRS of the ID registers at EL0.
func emulatedIDRegisters() bool {
	caps, err := feature.Host()
	return err == nil && caps.CPUID
}

// pinToCPU restricts the calling OS thread to cpu. The caller must hold
// runtime.LockOSThread.
func pinToCPU(cpu int) (func(), error) {
	var old unix.CPUSet
	if err := unix.SchedGetaffinity(0, &old); err != nil {
		return nil, fmt.Errorf("get affinity: %w", err)
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("pin to cpu %d: %w", cpu, err)
	}
	return func() { unix.SchedSetaffinity(0, &old) }, nil
}
