package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setReuseAddr is the net.ListenConfig.Control hook that sets SO_REUSEADDR
// on the listening socket before bind, the way production Go network
// servers in the ecosystem configure this option, matching SPEC_FULL.md §2's
// choice to wire the teacher's golang.org/x/sys indirect dependency here
// rather than drop it.
func setReuseAddr(_ string, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
