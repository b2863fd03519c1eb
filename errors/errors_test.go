package errors

import (
	"fmt"
	"testing"
)

func TestMarksyncError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeNodeNotFound, "node not found")
	if err.Code != ErrCodeNodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNodeNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeStoreAccess, "write failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeStoreAccess) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeNodeNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("id", "42").WithDetail("attempt", 1)
	if detailed.Details["id"] != "42" {
		t.Error("WithDetail should add details")
	}
}

func TestIsThroughFmtWrap(t *testing.T) {
	inner := NodeNotFound("7")
	outer := fmt.Errorf("lookup: %w", inner)
	if !Is(outer, ErrCodeNodeNotFound) {
		t.Error("Is should see codes through fmt.Errorf wrapping")
	}
	if GetCode(outer) != ErrCodeNodeNotFound {
		t.Errorf("GetCode = %s, want %s", GetCode(outer), ErrCodeNodeNotFound)
	}
}

func TestIsThroughCauseChain(t *testing.T) {
	err := NodeResolution("3", NodeNotFound("3"))
	if !Is(err, ErrCodeNodeResolution) {
		t.Error("expected NODE_RESOLUTION")
	}
	if !Is(err, ErrCodeNodeNotFound) {
		t.Error("expected NODE_NOT_FOUND in cause chain")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := HTTPStatus(503)
	if err.Code != ErrCodeTransmissionFailed {
		t.Errorf("expected code %s, got %s", ErrCodeTransmissionFailed, err.Code)
	}
	if err.Message != "HTTP 503: Service Unavailable" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Details["status"] != 503 {
		t.Error("HTTPStatus should include status detail")
	}

	inc := ConfigIncomplete(false, 2)
	if inc.Details["hasEndpoint"] != false || inc.Details["selected"] != 2 {
		t.Errorf("ConfigIncomplete details = %v", inc.Details)
	}

	store := StoreAccess("write", fmt.Errorf("disk full"))
	if store.Details["op"] != "write" {
		t.Error("StoreAccess should include op detail")
	}
}
