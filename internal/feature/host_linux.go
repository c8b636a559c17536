//go:build linux

package feature

import (
	"fmt"

	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"
)

// Linux auxiliary vector tags and arm64 hwcap bits.
const (
	atHWCAP  = 16
	atHWCAP2 = 26

	hwcapCPUID = 1 << 11
	hwcapPACA  = 1 << 30
	hwcapPACG  = 1 << 31
	hwcap2BTI  = 1 << 17
)

// auxv is swapped out by tests.
var auxv = unix.Auxv

// hwCaps picks AT_HWCAP and AT_HWCAP2 out of the auxiliary vector pairs.
func hwCaps(pairs [][2]uintptr) (hwcap, hwcap2 uint64) {
	for _, p := range pairs {
		switch p[0] {
		case 0:
			return hwcap, hwcap2
		case atHWCAP:
			hwcap = uint64(p[1])
		case atHWCAP2:
			hwcap2 = uint64(p[1])
		}
	}
	return hwcap, hwcap2
}

func readHWCaps() (hwcap, hwcap2 uint64, err error) {
	pairs, err := auxv()
	if err != nil {
		return 0, 0, fmt.Errorf("read auxv: %w", err)
	}
	hwcap, hwcap2 = hwCaps(pairs)
	return hwcap, hwcap2, nil
}

func hostCaps() (HostCaps, error) {
	hwcap, hwcap2, err := readHWCaps()
	if err != nil {
		return HostCaps{}, err
	}
	return linuxCaps(hwcap, hwcap2), nil
}

func linuxCaps(hwcap, hwcap2 uint64) HostCaps {
	h := HostCaps{Source: "linux auxv", CPUID: hwcap&hwcapCPUID != 0}
	if hwcap&hwcapPACA != 0 {
		h.Mask |= PAC
	}
	if hwcap&hwcapPACG != 0 {
		h.Mask |= PACGA
	}
	if hwcap2&hwcap2BTI != 0 {
		h.Mask |= BTI
	}

	h.add("aes", cpu.ARM64.HasAES)
	h.add("pmull", cpu.ARM64.HasPMULL)
	h.add("sha1", cpu.ARM64.HasSHA1)
	h.add("sha2", cpu.ARM64.HasSHA2)
	h.add("sha3", cpu.ARM64.HasSHA3)
	h.add("sha512", cpu.ARM64.HasSHA512)
	h.add("sm3", cpu.ARM64.HasSM3)
	h.add("sm4", cpu.ARM64.HasSM4)
	h.add("crc32", cpu.ARM64.HasCRC32)
	h.add("atomics", cpu.ARM64.HasATOMICS)
	h.add("asimddp", cpu.ARM64.HasASIMDDP)
	h.add("asimdrdm", cpu.ARM64.HasASIMDRDM)
	h.add("jscvt", cpu.ARM64.HasJSCVT)
	h.add("fcma", cpu.ARM64.HasFCMA)
	h.add("lrcpc", cpu.ARM64.HasLRCPC)
	h.add("sve", cpu.ARM64.HasSVE)
	h.add("cpuid", h.CPUID)
	h.add("paca", h.Mask&PAC != 0)
	h.add("pacg", h.Mask&PACGA != 0)
	h.add("bti", h.Mask&BTI != 0)
	return h.finish()
}
