//go:build !linux

package ipc

import "net"

// verifyPeer has no portable peer credential check; the socket mode is
// the only access control off Linux.
func verifyPeer(conn net.Conn) (bool, error) {
	return true, nil
}
