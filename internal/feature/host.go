package feature

import (
	"errors"
	"sort"
)

// ErrHostUnsupported is returned by Host on systems without a userland
// capability interface.
var ErrHostUnsupported = errors.New("feature: host capabilities unavailable on this platform")

// HostCaps is what the operating system tells unprivileged code about the CPU,
// without going through the control channel.
type HostCaps struct {
	Source string
	Mask   Mask
	// CPUID is set when ID register reads at EL0 are emulated by the kernel.
	CPUID bool
	Flags []string
}

func (h *HostCaps) add(flag string, ok bool) {
	if ok {
		h.Flags = append(h.Flags, flag)
	}
}

func (h *HostCaps) finish() HostCaps {
	sort.Strings(h.Flags)
	return *h
}

// Host reports the capabilities advertised by the operating system.
func Host() (HostCaps, error) { return hostCaps() }
