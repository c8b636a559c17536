//go:build darwin

package feature

import "golang.org/x/sys/unix"

// sysctlFlag reads one hw.optional entry. Missing entries read as absent.
func sysctlFlag(name string) bool {
	v, err := unix.SysctlUint32(name)
	return err == nil && v != 0
}

var darwinFlags = []struct {
	flag   string
	sysctl string
	mask   Mask
}{
	{"aes", "hw.optional.arm.FEAT_AES", 0},
	{"pmull", "hw.optional.arm.FEAT_PMULL", 0},
	{"sha1", "hw.optional.arm.FEAT_SHA1", 0},
	{"sha2", "hw.optional.arm.FEAT_SHA256", 0},
	{"sha3", "hw.optional.arm.FEAT_SHA3", 0},
	{"sha512", "hw.optional.arm.FEAT_SHA512", 0},
	{"crc32", "hw.optional.armv8_crc32", 0},
	{"atomics", "hw.optional.arm.FEAT_LSE", 0},
	{"asimddp", "hw.optional.arm.FEAT_DotProd", 0},
	{"asimdrdm", "hw.optional.arm.FEAT_RDM", 0},
	{"jscvt", "hw.optional.arm.FEAT_JSCVT", 0},
	{"fcma", "hw.optional.arm.FEAT_FCMA", 0},
	{"lrcpc", "hw.optional.arm.FEAT_LRCPC", 0},
	{"paca", "hw.optional.arm.FEAT_PAuth", PAC},
	{"bti", "hw.optional.arm.FEAT_BTI", BTI},
	{"csv2", "hw.optional.arm.FEAT_CSV2", 0},
}

func hostCaps() (HostCaps, error) {
	h := HostCaps{Source: "darwin sysctl"}
	for _, f := range darwinFlags {
		ok := sysctlFlag(f.sysctl)
		h.add(f.flag, ok)
		if ok {
			h.Mask |= f.mask
		}
	}
	return h.finish(), nil
}
