//go:build !linux

package regserver

import "fmt"

// Only Linux emulates EL0 reads of the ID registers.
func emulatedIDRegisters() bool { return false }

func pinToCPU(cpu int) (func(), error) {
	return nil, fmt.Errorf("pin to cpu %d: %w", cpu, ErrUnsupported)
}
