package command

import "fmt"

// Linux ioctl layout: nr bits 0-7, type 8-15, size 16-29, dir 30-31.
const (
	linuxMagic = 0xF0

	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
	iocSizeMask  = 0x3FFF
)

// nr is the register byte carried in every platform code.
func (c ID) nr() uint32 { return uint32(c.Register()) }

// LinuxRequest returns the ioctl request number of c: _IOR for get, _IOW for
// set and _IOWR for exec, with the payload size as the argument size.
// Instruction requests carry the instruction number as nr.
func LinuxRequest(c ID) uint32 {
	dir, nr := uint32(iocRead), c.nr()
	switch c.Direction() {
	case Set:
		dir = iocWrite
	case Exec:
		dir, nr = iocRead|iocWrite, uint32(c.Instr())
	}
	return dir<<iocDirShift |
		uint32(c.PayloadSize())<<iocSizeShift |
		linuxMagic<<iocTypeShift |
		nr<<iocNRShift
}

// ParseLinuxRequest is the inverse of LinuxRequest.
func ParseLinuxRequest(req uint32) (ID, error) {
	if (req>>iocTypeShift)&0xFF != linuxMagic {
		return 0, fmt.Errorf("ioctl 0x%08x: not a cpusysregs request", req)
	}
	var (
		c   ID
		err error
	)
	switch req >> iocDirShift {
	case iocRead:
		c, err = fromNR(uint8(req), Get)
	case iocWrite:
		c, err = fromNR(uint8(req), Set)
	case iocRead | iocWrite:
		c, err = ForInstr(Instr(uint8(req)))
	default:
		return 0, fmt.Errorf("ioctl 0x%08x: bad direction", req)
	}
	if err != nil {
		return 0, err
	}
	if size := int(req>>iocSizeShift) & iocSizeMask; size != c.PayloadSize() {
		return 0, fmt.Errorf("ioctl 0x%08x: size %d, want %d", req, size, c.PayloadSize())
	}
	return c, nil
}

func fromNR(nr uint8, dir Direction) (ID, error) {
	c := ID(nr) & indexMask
	if nr&0x80 != 0 {
		c |= pairBit
	}
	if dir == Set {
		c |= setBit
	}
	if _, _, err := Parse(c); err != nil {
		return 0, err
	}
	return c, nil
}

// darwinOptionBase is the first socket option name of the kernel control.
// Register options use the 256 names above it; instruction options follow.
const (
	darwinOptionBase  = 0x00AC0000
	darwinInstrOption = darwinOptionBase + 0x100
)

// DarwinOption returns the kernel control socket option for c. The direction
// is carried by the choice of getsockopt or setsockopt; instructions go
// through getsockopt with the arguments preloaded in the buffer.
func DarwinOption(c ID) int {
	if c.IsInstr() {
		return darwinInstrOption + int(c.Instr())
	}
	return darwinOptionBase + int(c.nr())
}

// ParseDarwinOption is the inverse of DarwinOption. dir is Get for getsockopt
// and Set for setsockopt.
func ParseDarwinOption(opt int, dir Direction) (ID, error) {
	if n := opt - darwinInstrOption; n >= 0 && n < int(numInstrs) {
		if dir != Get {
			return 0, fmt.Errorf("sockopt 0x%08x: instructions need getsockopt: %w", opt, ErrMalformed)
		}
		return ForInstr(Instr(n))
	}
	nr := opt - darwinOptionBase
	if nr < 0 || nr > 0xFF {
		return 0, fmt.Errorf("sockopt 0x%08x: not a cpusysregs option", opt)
	}
	return fromNR(uint8(nr), dir)
}

// Windows CTL_CODE parameters.
const (
	fileDeviceUnknown = 0x22
	methodBuffered    = 0
	fileAnyAccess     = 0
	windowsFuncBase   = 0x800
	windowsFuncSet    = 0x100
	windowsFuncInstr  = 0x200
)

// WindowsIoctl returns CTL_CODE(FILE_DEVICE_UNKNOWN, fn, METHOD_BUFFERED,
// FILE_ANY_ACCESS) with fn = 0x800|set<<8|nr for registers and 0xA00|instr
// for instructions.
func WindowsIoctl(c ID) uint32 {
	fn := uint32(windowsFuncBase) | c.nr()
	switch c.Direction() {
	case Set:
		fn |= windowsFuncSet
	case Exec:
		fn = windowsFuncBase | windowsFuncInstr | uint32(c.Instr())
	}
	return fileDeviceUnknown<<16 | fileAnyAccess<<14 | fn<<2 | methodBuffered
}

// ParseWindowsIoctl is the inverse of WindowsIoctl.
func ParseWindowsIoctl(code uint32) (ID, error) {
	if code>>16 != fileDeviceUnknown || code&3 != methodBuffered {
		return 0, fmt.Errorf("ioctl 0x%08x: not a cpusysregs control code", code)
	}
	fn := (code >> 2) & 0xFFF
	if fn&windowsFuncBase == 0 || fn&0x400 != 0 {
		return 0, fmt.Errorf("ioctl 0x%08x: bad function 0x%03x", code, fn)
	}
	if fn&windowsFuncInstr != 0 {
		if fn&windowsFuncSet != 0 {
			return 0, fmt.Errorf("ioctl 0x%08x: bad function 0x%03x", code, fn)
		}
		return ForInstr(Instr(uint8(fn)))
	}
	dir := Get
	if fn&windowsFuncSet != 0 {
		dir = Set
	}
	return fromNR(uint8(fn), dir)
}
