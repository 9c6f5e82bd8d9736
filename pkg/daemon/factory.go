package daemon

import (
	"net"
	"os"
	"time"
)

// New returns a Client that will use the daemon listening on socketPath if
// available, otherwise a LocalClient over root.
//
// Callers don't need to know whether the daemon is running or not. The
// same API works in both modes.
func New(socketPath, root string) (Client, error) {
	if Reachable(socketPath) {
		if client, err := NewRemoteClient(socketPath); err == nil {
			return client, nil
		}
	}
	return NewLocalClient(root)
}

// Reachable reports whether something accepts connections on socketPath.
func Reachable(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
