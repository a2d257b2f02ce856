package cli

import "errors"

// ExitError carries a specific process exit code out of the run loop. It
// distinguishes a propagated child exit code (and "stale with no command")
// from tool-internal failures, which exit 1 without one.
type ExitError struct {
	message string
	Code    int
}

func (e *ExitError) Error() string {
	return e.message
}

// ExitCode extracts the process exit code for err: 0 for nil, the carried
// code for an [ExitError], and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}
