//go:build windows

package ipc

import (
	"os"
	"path/filepath"
)

func socketPath() string {
	// os.TempDir() can be long enough on Windows that the socket name would
	// overflow the 108-character sun_path limit; use a short subdirectory.
	dir := filepath.Join(os.TempDir(), "csr")
	os.MkdirAll(dir, 0o700)
	return filepath.Join(dir, "d.sock")
}
