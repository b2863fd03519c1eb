// Package daemon provides a client interface for the marksync daemon.
// It implements a transparent fallback pattern: if the daemon is running,
// requests go over its unix socket; if not, the same cycle runs in-process.
package daemon

import (
	"context"
	stderrors "errors"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/daemon/engine"
	"github.com/grovetools/marksync/internal/daemon/store"
	"github.com/grovetools/marksync/internal/syncer"
)

// Status is the daemon engine status.
type Status = engine.Status

// Update is one activity notification from the daemon stream.
type Update = store.Update

// Client defines the interface for interacting with the marksync daemon.
// Both RemoteClient (socket) and LocalClient (direct calls) implement it.
type Client interface {
	// Send runs an interactive sync now, bypassing coalescing. hooks may be
	// nil. A failed send is reported in the response, not as an error; the
	// error is reserved for failures to reach the daemon.
	Send(ctx context.Context, hooks syncer.Lifecycle) (*BridgeResponse, error)

	// Status returns the daemon engine status.
	Status(ctx context.Context) (*Status, error)

	// Flush fires the daemon's pending window immediately.
	Flush(ctx context.Context) (bool, error)

	// Stream subscribes to daemon activity. The channel closes when ctx is
	// cancelled or the connection is lost.
	Stream(ctx context.Context) (<-chan Update, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// BridgeResponse is the reply to a relayed send. It carries the
// transmitter's success or failure classification unchanged.
type BridgeResponse struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Outcome *syncer.Outcome `json:"outcome,omitempty"`
}

// NewBridgeResponse builds the envelope for an interactive cycle result.
func NewBridgeResponse(out *syncer.Outcome, err error) *BridgeResponse {
	if err != nil {
		code, message := describe(err)
		return &BridgeResponse{Success: false, Error: message, Code: code, Outcome: out}
	}
	resp := &BridgeResponse{Success: true, Outcome: out}
	if out != nil {
		resp.Data = out.Data
	}
	return resp
}

// Err rebuilds the failure carried by a response, or nil on success.
func (r *BridgeResponse) Err() error {
	if r.Success {
		return nil
	}
	if r.Code != "" {
		return errors.New(errors.ErrorCode(r.Code), r.Error)
	}
	return stderrors.New(r.Error)
}

// describe splits err into its code and the user-facing message.
func describe(err error) (code, message string) {
	var me *errors.MarksyncError
	if !stderrors.As(err, &me) {
		return "", err.Error()
	}
	message = me.Message
	if me.Cause != nil && me.Cause.Error() != message {
		message += ": " + me.Cause.Error()
	}
	return string(me.Code), message
}

// FlushResult is the reply to /api/flush.
type FlushResult struct {
	Flushed bool `json:"flushed"`
}
