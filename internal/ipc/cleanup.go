package ipc

// removeSocket removes a Unix domain socket file left by a previous server.
func removeSocket(path string) {
	removeSocketPlatform(path)
}
