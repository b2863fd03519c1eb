package daemon

import (
	"context"
	"errors"

	"github.com/grovetools/marksync/internal/syncer"
)

// LocalClient implements Client by running the sync cycle in-process.
// It is used when the daemon is not running; there is no coalescer, so
// only interactive sends are available.
type LocalClient struct {
	syncer *syncer.Syncer
}

// NewLocalClient creates a new LocalClient.
func NewLocalClient(sy *syncer.Syncer) *LocalClient {
	return &LocalClient{syncer: sy}
}

// Send runs one interactive cycle directly.
func (c *LocalClient) Send(ctx context.Context, hooks syncer.Lifecycle) (*BridgeResponse, error) {
	out, err := c.syncer.SendNow(ctx, hooks)
	return NewBridgeResponse(out, err), nil
}

// Status returns an error for LocalClient since there is no engine to report on.
func (c *LocalClient) Status(ctx context.Context) (*Status, error) {
	return nil, errors.New("status not available in local mode; start the daemon with 'marksync daemon start'")
}

// Flush returns an error for LocalClient since there is no pending window.
func (c *LocalClient) Flush(ctx context.Context) (bool, error) {
	return false, errors.New("flush not available in local mode; start the daemon with 'marksync daemon start'")
}

// Stream returns an error for LocalClient since streaming is only available via daemon.
func (c *LocalClient) Stream(ctx context.Context) (<-chan Update, error) {
	return nil, errors.New("streaming not available in local mode; start the daemon for real-time updates")
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
