//go:build !windows

package regaccess

import (
	"errors"

	"golang.org/x/sys/unix"
)

func errnoKind(err error) (Kind, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	// ENOTSUP and EOPNOTSUPP share a value on Linux.
	if errno == unix.ENOTSUP {
		return KindUnsupported, true
	}
	switch errno {
	case unix.EPERM, unix.EACCES:
		return KindDenied, true
	case unix.EINVAL, unix.ENOTTY, unix.EOPNOTSUPP:
		return KindUnsupported, true
	}
	return KindTransport, true
}
