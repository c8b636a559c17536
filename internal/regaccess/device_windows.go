//go:build windows

package regaccess

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/tinyrange/cpusysregs/internal/command"
)

// DefaultDevicePath is the symbolic link the cpusysregs driver creates.
const DefaultDevicePath = `\\.\CpuSysRegs`

// WindowsTransport issues DeviceIoControl requests on the cpusysregs driver.
type WindowsTransport struct {
	path   string
	handle windows.Handle
}

func OpenWindowsDevice(path string) (*WindowsTransport, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("open %s: %w", path, err), "open", "")
	}
	return &WindowsTransport{path: path, handle: h}, nil
}

func (t *WindowsTransport) Name() string { return "device:" + t.path }

func (t *WindowsTransport) Do(ctx context.Context, cmd command.ID, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, cmd.PayloadSize())
	copy(buf, payload)
	code := command.WindowsIoctl(cmd)

	var returned uint32
	var err error
	switch cmd.Direction() {
	case command.Set:
		err = windows.DeviceIoControl(t.handle, code, &buf[0], uint32(len(buf)), nil, 0, &returned, nil)
	case command.Exec:
		// METHOD_BUFFERED: the driver rewrites the arguments in place.
		err = windows.DeviceIoControl(t.handle, code, &buf[0], uint32(len(buf)), &buf[0], uint32(len(buf)), &returned, nil)
	default:
		err = windows.DeviceIoControl(t.handle, code, nil, 0, &buf[0], uint32(len(buf)), &returned, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("DeviceIoControl 0x%08x: %w", code, err)
	}
	if cmd.Direction() == command.Set {
		return nil, nil
	}
	if int(returned) != len(buf) {
		return nil, fmt.Errorf("DeviceIoControl 0x%08x: returned %d bytes, want %d", code, returned, len(buf))
	}
	return buf, nil
}

func (t *WindowsTransport) Close() error { return windows.CloseHandle(t.handle) }

func openPlatform() (Transport, error) { return OpenWindowsDevice(DefaultDevicePath) }
