//go:build !linux && !darwin && !windows

package regaccess

import (
	"errors"
	"runtime"
)

func openPlatform() (Transport, error) {
	return nil, &ChannelError{Kind: KindUnsupported, Op: "open", Err: errors.New("no cpusysregs driver for " + runtime.GOOS)}
}
