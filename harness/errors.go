package harness

import (
	"fmt"
	"strings"
)

// InvocationError reports a worker that could not be started, exited with a
// non-zero status, or was killed after its timeout.
type InvocationError struct {
	Target   string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	var b strings.Builder

	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "worker %s timed out", e.Target)
	case e.ExitCode > 0:
		fmt.Fprintf(&b, "worker %s exited with status %d", e.Target, e.ExitCode)
	default:
		fmt.Fprintf(&b, "worker %s failed", e.Target)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", stderr)
	}

	return b.String()
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ParseError reports worker output that is not a well-formed list of timing
// entries. Index is the offending entry, or -1 when the document itself is
// malformed.
type ParseError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
