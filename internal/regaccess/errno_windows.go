//go:build windows

package regaccess

import (
	"errors"

	"golang.org/x/sys/windows"
)

func errnoKind(err error) (Kind, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case windows.ERROR_ACCESS_DENIED, windows.ERROR_PRIVILEGE_NOT_HELD:
		return KindDenied, true
	case windows.ERROR_INVALID_FUNCTION, windows.ERROR_INVALID_PARAMETER, windows.ERROR_NOT_SUPPORTED:
		return KindUnsupported, true
	}
	return KindTransport, true
}
