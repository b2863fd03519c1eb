package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/marksync/errors"
)

// LocalFactory builds the in-process fallback on demand, so callers only pay
// for opening the bookmark source when the daemon is not running.
type LocalFactory func() (*LocalClient, error)

// New returns a RemoteClient when the daemon answers on socketPath,
// otherwise the LocalClient built by local.
//
// This implements the "transparent daemon" pattern: callers don't need
// to know whether the daemon is running or not.
func New(socketPath string, local LocalFactory) (Client, error) {
	if Reachable(socketPath) {
		if client, err := NewRemoteClient(socketPath); err == nil {
			return client, nil
		}
	}

	// Fallback: daemon not running, use local client
	return local()
}

// Connect returns a RemoteClient, or a DAEMON_UNAVAILABLE error. Use this
// for operations that only make sense against a running daemon.
func Connect(socketPath string) (*RemoteClient, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return nil, errors.DaemonUnavailable(err)
	}
	client, err := NewRemoteClient(socketPath)
	if err != nil {
		return nil, errors.DaemonUnavailable(err)
	}
	if !client.IsRunning() {
		client.Close()
		return nil, errors.DaemonUnavailable(nil).WithDetail("socket", socketPath)
	}
	return client, nil
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
