package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/marksync/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message and a hint for err, and returns err unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := DefaultTheme
	w := h.Out
	fail := func(msg string) { fmt.Fprintf(w, "%s %s\n", t.Error.Render("✗"), msg) }
	hint := func(msg string) { fmt.Fprintln(w, t.Muted.Render(msg)) }

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fail("Settings file not found.")
		hint("Run 'marksync config path' to see where marksync looks for marksync.yml.")

	case errors.ErrCodeConfigInvalid:
		fail(fmt.Sprintf("Invalid settings: %v", err))
		hint("Run 'marksync config schema' to print the settings schema.")

	case errors.ErrCodeConfigIncomplete:
		fail("Sync is not configured.")
		hint("Set an endpoint with 'marksync config set-endpoint' and select bookmarks with 'marksync select'.")

	case errors.ErrCodeTransmissionFailed:
		fail(fmt.Sprintf("Sync request failed: %s", message(err)))
		hint("Check the endpoint with 'marksync config show'.")

	case errors.ErrCodeStoreAccess:
		fail(fmt.Sprintf("Could not access the sync record: %v", err))

	case errors.ErrCodeDaemonUnavailable:
		fail("The marksync daemon is not running.")
		hint("Start it with 'marksync daemon start'.")

	case errors.ErrCodeNodeNotFound:
		if me, ok := err.(*errors.MarksyncError); ok {
			fail(fmt.Sprintf("Bookmark '%v' not found.", me.Details["id"]))
		} else {
			fail(err.Error())
		}
		hint("Run 'marksync tree' to list bookmark identifiers.")

	default:
		fail(fmt.Sprintf("Error: %v", err))
	}

	if h.Verbose {
		if me, ok := err.(*errors.MarksyncError); ok {
			fmt.Fprintf(w, "\nError details:\n%s\n", me.ToJSON())
		}
	}
	return err
}

func message(err error) string {
	if me, ok := err.(*errors.MarksyncError); ok {
		if me.Cause != nil {
			return me.Cause.Error()
		}
		return me.Message
	}
	return err.Error()
}
