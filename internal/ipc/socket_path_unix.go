//go:build !windows

package ipc

import (
	"os"
	"path/filepath"
)

func socketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "cpusysregs.sock")
	}
	if os.Geteuid() == 0 {
		return "/run/cpusysregs.sock"
	}
	return filepath.Join(os.TempDir(), "cpusysregs.sock")
}
