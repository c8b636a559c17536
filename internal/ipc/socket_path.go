package ipc

import "os"

// SocketEnv overrides the default daemon socket path.
const SocketEnv = "CPUSYSREGS_SOCKET"

// DefaultSocketPath returns $CPUSYSREGS_SOCKET, or the platform default.
func DefaultSocketPath() string {
	if p := os.Getenv(SocketEnv); p != "" {
		return p
	}
	return socketPath()
}
