//go:build !windows

package daemon

import (
	"os"
	"syscall"
)

// SIGHUP stops the daemon too: it is normally run in the foreground of a
// terminal or under a supervisor that restarts it.
var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
