package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs root with styled help and reports a returned error through
// the ErrorHandler. It returns the process exit code.
func Execute(root *cobra.Command) int {
	InitializeTerminal()
	ApplyStyledHelpRecursive(root)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return UsageError(err)
	})

	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	if cmd == nil {
		cmd = root
	}
	if isUsageError(err) {
		PrintError(cmd, err)
		return 2
	}
	NewErrorHandler(GetOptions(cmd).Verbose).Handle(err)
	return 1
}

// usageError marks argument and flag problems, which get a help hint
// instead of error-code hints.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// UsageError wraps err as a usage error.
func UsageError(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err: err}
}

func isUsageError(err error) bool {
	_, ok := err.(usageError)
	return ok
}

// ExactArgs is cobra.ExactArgs reported as a usage error.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return UsageError(cobra.ExactArgs(n)(cmd, args))
	}
}
