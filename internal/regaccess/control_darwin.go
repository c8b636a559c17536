//go:build darwin

package regaccess

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"

	"github.com/tinyrange/cpusysregs/internal/command"
)

// ControlName is the kernel control the cpusysregs kext registers.
const ControlName = "com.tinyrange.cpusysregs"

// sysprotoControl is SYSPROTO_CONTROL from <sys/kern_control.h>. x/sys has
// no constant for it.
const sysprotoControl = 2

var (
	sockoptOnce sync.Once
	sockoptErr  error

	libSystem    uintptr
	getsockoptFn func(fd int32, level int32, name int32, val unsafe.Pointer, size *uint32) int32
	setsockoptFn func(fd int32, level int32, name int32, val unsafe.Pointer, size uint32) int32
	errnoFn      func() *int32
)

func ensureSockopt() error {
	sockoptOnce.Do(func() {
		var err error
		libSystem, err = purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_GLOBAL)
		if err != nil {
			sockoptErr = err
			return
		}
		purego.RegisterLibFunc(&getsockoptFn, libSystem, "getsockopt")
		purego.RegisterLibFunc(&setsockoptFn, libSystem, "setsockopt")
		purego.RegisterLibFunc(&errnoFn, libSystem, "__error")
	})
	return sockoptErr
}

// ErrPairRegister is returned for key registers: reading or writing them
// through the kernel control crashes macOS.
var ErrPairRegister = errors.New("pair registers are not served on darwin")

// KernelControlTransport talks to the cpusysregs kext over a PF_SYSTEM
// control socket.
type KernelControlTransport struct {
	fd int
}

func OpenKernelControl(name string) (*KernelControlTransport, error) {
	if err := ensureSockopt(); err != nil {
		return nil, &ChannelError{Kind: KindTransport, Op: "open", Err: fmt.Errorf("load libSystem: %w", err)}
	}

	fd, err := unix.Socket(unix.AF_SYSTEM, unix.SOCK_DGRAM, sysprotoControl)
	if err != nil {
		return nil, classify(fmt.Errorf("control socket: %w", err), "open", "")
	}

	var info unix.CtlInfo
	copy(info.Name[:], name)
	if err := unix.IoctlCtlInfo(fd, &info); err != nil {
		unix.Close(fd)
		return nil, classify(fmt.Errorf("resolve control %q: %w", name, err), "open", "")
	}
	if err := unix.Connect(fd, &unix.SockaddrCtl{ID: info.Id, Unit: 0}); err != nil {
		unix.Close(fd)
		return nil, classify(fmt.Errorf("connect control %q: %w", name, err), "open", "")
	}
	return &KernelControlTransport{fd: fd}, nil
}

func (t *KernelControlTransport) Name() string { return "kctl:" + ControlName }

func (t *KernelControlTransport) Do(ctx context.Context, cmd command.ID, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cmd.IsPair() {
		return nil, &ChannelError{Kind: KindDenied, Op: cmd.Direction().String(), Err: ErrPairRegister}
	}

	opt := int32(command.DarwinOption(cmd))
	buf := make([]byte, cmd.PayloadSize())
	copy(buf, payload)

	// errno is per thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var rc int32
	if cmd.Direction() == command.Set {
		rc = setsockoptFn(int32(t.fd), sysprotoControl, opt, unsafe.Pointer(&buf[0]), uint32(len(buf)))
	} else {
		size := uint32(len(buf))
		rc = getsockoptFn(int32(t.fd), sysprotoControl, opt, unsafe.Pointer(&buf[0]), &size)
		if rc == 0 && int(size) != len(buf) {
			return nil, fmt.Errorf("getsockopt 0x%08x: returned %d bytes, want %d", opt, size, len(buf))
		}
	}
	runtime.KeepAlive(buf)
	if rc != 0 {
		return nil, fmt.Errorf("sockopt 0x%08x: %w", opt, unix.Errno(*errnoFn()))
	}
	if cmd.Direction() == command.Set {
		return nil, nil
	}
	return buf, nil
}

func (t *KernelControlTransport) Close() error { return unix.Close(t.fd) }

func openPlatform() (Transport, error) { return OpenKernelControl(ControlName) }
