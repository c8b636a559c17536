//go:build !linux && !darwin

package feature

func hostCaps() (HostCaps, error) { return HostCaps{}, ErrHostUnsupported }
