//go:build !windows

package ipc

import "os"

func removeSocketPlatform(path string) {
	fi, err := os.Lstat(path)
	if err != nil || fi.Mode()&os.ModeSocket == 0 {
		return
	}
	os.Remove(path)
}
