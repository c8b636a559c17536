//go:build linux

package feature

import (
	"errors"
	"testing"
)

func TestHWCapsFromAuxv(t *testing.T) {
	pairs := [][2]uintptr{
		{6, 4096},
		{atHWCAP, hwcapCPUID | hwcapPACA},
		{atHWCAP2, hwcap2BTI},
		{0, 0},
		{atHWCAP, 0xFFFF}, // after AT_NULL, ignored
	}
	hwcap, hwcap2 := hwCaps(pairs)
	caps := linuxCaps(hwcap, hwcap2)
	if !caps.CPUID || caps.Mask != PAC|BTI {
		t.Fatalf("caps = %+v", caps)
	}
}

func TestReadHWCapsUsesAuxv(t *testing.T) {
	old := auxv
	defer func() { auxv = old }()

	auxv = func() ([][2]uintptr, error) {
		return [][2]uintptr{{atHWCAP, hwcapPACG}}, nil
	}
	hwcap, _, err := readHWCaps()
	if err != nil || hwcap != hwcapPACG {
		t.Fatalf("readHWCaps = %#x, %v", hwcap, err)
	}

	auxv = func() ([][2]uintptr, error) { return nil, errors.New("no auxv") }
	if _, err := Host(); err == nil {
		t.Fatal("Host ignored the auxv error")
	}
}

func TestHostReadsSelf(t *testing.T) {
	if _, err := Host(); err != nil {
		t.Fatalf("Host: %v", err)
	}
}
