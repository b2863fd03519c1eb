package errors

import (
	"fmt"
	"net/http"
)

// ConfigNotFound creates a settings file not found error
func ConfigNotFound(path string) *MarksyncError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("settings file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid settings error
func ConfigInvalid(reason string) *MarksyncError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid settings: %s", reason))
}

// ConfigIncomplete reports that a sync cycle cannot run because the endpoint
// URL is unset or nothing is selected.
func ConfigIncomplete(hasEndpoint bool, selected int) *MarksyncError {
	return New(ErrCodeConfigIncomplete, "endpoint URL and at least one selected bookmark are required").
		WithDetail("hasEndpoint", hasEndpoint).
		WithDetail("selected", selected)
}

// NodeResolution creates an error for a selected node that could not be
// resolved against the live tree.
func NodeResolution(id string, err error) *MarksyncError {
	return Wrap(err, ErrCodeNodeResolution, fmt.Sprintf("failed to resolve bookmark %s", id)).
		WithDetail("id", id)
}

// NodeNotFound creates an error for an identifier absent from the tree
func NodeNotFound(id string) *MarksyncError {
	return New(ErrCodeNodeNotFound, fmt.Sprintf("bookmark %s not found", id)).
		WithDetail("id", id)
}

// TransmissionFailed wraps a network-level failure of the outbound POST
func TransmissionFailed(err error) *MarksyncError {
	return Wrap(err, ErrCodeTransmissionFailed, err.Error())
}

// HTTPStatus creates a transmission failure for a non-success HTTP status.
// The message mirrors the "HTTP <code>: <text>" form shown to users.
func HTTPStatus(code int) *MarksyncError {
	return New(ErrCodeTransmissionFailed, fmt.Sprintf("HTTP %d: %s", code, http.StatusText(code))).
		WithDetail("status", code)
}

// StoreAccess wraps a durable state read or write failure
func StoreAccess(op string, err error) *MarksyncError {
	return Wrap(err, ErrCodeStoreAccess, fmt.Sprintf("state %s failed", op)).
		WithDetail("op", op)
}

// DaemonUnavailable creates an error for an unreachable daemon socket
func DaemonUnavailable(err error) *MarksyncError {
	return Wrap(err, ErrCodeDaemonUnavailable, "marksync daemon is not reachable")
}

// InvalidInput creates an invalid input error
func InvalidInput(reason string) *MarksyncError {
	return New(ErrCodeInvalidInput, reason)
}
