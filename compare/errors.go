package compare

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidComparison is returned for a Comparison that cannot run.
var ErrInvalidComparison = errors.New("invalid comparison")

// InsufficientDataError reports targets that produced no successful run.
type InsufficientDataError struct {
	Targets []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf(
		"no results to compare: no successful runs for %s",
		strings.Join(e.Targets, ", "),
	)
}

// AlignmentError reports a run whose operations cannot be matched against
// the reference operations.
type AlignmentError struct {
	Target string
	// Run is the 1-based index among the target's successful runs.
	Run    int
	Reason string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("align %s run %d: %s", e.Target, e.Run, e.Reason)
}
