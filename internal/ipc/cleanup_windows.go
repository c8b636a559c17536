//go:build windows

package ipc

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// File locks can outlive the closed socket briefly on Windows.
func removeSocketPlatform(path string) {
	for attempt := 0; attempt < 5; attempt++ {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
