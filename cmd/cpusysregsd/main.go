// cpusysregsd serves Arm64 system register reads and writes to unprivileged
// clients. It runs either the native EL0 backend or replays a snapshot
// collected on another machine.
package main

import "github.com/tinyrange/cpusysregs/internal/daemon"

func main() {
	daemon.Main()
}
