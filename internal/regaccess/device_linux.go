//go:build linux

package regaccess

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tinyrange/cpusysregs/internal/command"
)

// DefaultDevicePath is the character device the cpusysregs kernel module
// creates.
const DefaultDevicePath = "/dev/cpusysregs"

// DeviceTransport issues ioctls on the cpusysregs character device.
type DeviceTransport struct {
	path string
	fd   int
}

func OpenDevice(path string) (*DeviceTransport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, classify(fmt.Errorf("open %s: %w", path, err), "open", "")
	}
	return &DeviceTransport{path: path, fd: fd}, nil
}

func (t *DeviceTransport) Name() string { return "device:" + t.path }

func (t *DeviceTransport) Do(ctx context.Context, cmd command.ID, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, cmd.PayloadSize())
	copy(buf, payload)

	req := command.LinuxRequest(cmd)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), uintptr(req), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return nil, fmt.Errorf("ioctl 0x%08x: %w", req, errno)
	}
	if cmd.Direction() == command.Set {
		return nil, nil
	}
	return buf, nil
}

func (t *DeviceTransport) Close() error { return unix.Close(t.fd) }

func openPlatform() (Transport, error) { return OpenDevice(DefaultDevicePath) }
