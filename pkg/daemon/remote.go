package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/logging"
	"github.com/sirupsen/logrus"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
	logger     *logrus.Entry
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	// Create HTTP client that dials Unix socket
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	// No client timeout: an interactive send waits for the endpoint, which
	// has no timeout unless transport.timeout is set.
	client := &http.Client{Transport: transport}

	return &RemoteClient{
		httpClient: client,
		socketPath: socketPath,
		logger:     logging.NewLogger("daemon-client"),
	}, nil
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

func (c *RemoteClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.DaemonUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Send relays an interactive send to the daemon. hooks observe the round
// trip: Begin before the request, then Success or Failure from the reply.
func (c *RemoteClient) Send(ctx context.Context, hooks syncer.Lifecycle) (*BridgeResponse, error) {
	if hooks == nil {
		hooks = syncer.Hooks{}
	}
	hooks.Begin()

	var resp BridgeResponse
	if err := c.do(ctx, http.MethodPost, "/api/send", &resp); err != nil {
		hooks.Failure(err)
		return nil, err
	}
	c.logger.WithField("success", resp.Success).Debug("Send relayed through daemon")

	if resp.Success {
		out := resp.Outcome
		if out == nil {
			out = &syncer.Outcome{Data: resp.Data}
		}
		hooks.Success(out)
	} else {
		hooks.Failure(resp.Err())
	}
	return &resp, nil
}

// Status returns the daemon engine status.
func (c *RemoteClient) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Flush asks the daemon to fire its pending window now.
func (c *RemoteClient) Flush(ctx context.Context) (bool, error) {
	var res FlushResult
	if err := c.do(ctx, http.MethodPost, "/api/flush", &res); err != nil {
		return false, err
	}
	return res.Flushed, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Stream subscribes to daemon activity over a websocket. The channel is
// closed when the context is cancelled or the connection is lost.
func (c *RemoteClient) Stream(ctx context.Context) (<-chan Update, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
		HandshakeTimeout: 5 * time.Second,
	}

	ws, resp, err := dialer.DialContext(ctx, "ws://unix/api/stream", nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream returned status %d: %w", resp.StatusCode, err)
		}
		return nil, errors.DaemonUnavailable(err)
	}

	ch := make(chan Update, 10)

	// Unblock ReadJSON on cancel.
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	go func() {
		defer close(ch)
		defer ws.Close()

		for {
			var update Update
			if err := ws.ReadJSON(&update); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.WithError(err).Debug("Stream ended")
				}
				return
			}

			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
