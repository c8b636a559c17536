//go:build windows

package daemon

import "os"

// SIGTERM does not exist on Windows; os.Interrupt covers Ctrl+C and
// Ctrl+Break.
var shutdownSignals = []os.Signal{os.Interrupt}
