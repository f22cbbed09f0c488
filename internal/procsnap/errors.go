package procsnap

import (
	"errors"
	"fmt"
)

var (
	// ErrSkip is returned by a Source when a process yields no row, typically
	// because it exited between enumeration and query.
	ErrSkip = errors.New("procsnap: process skipped")

	// ErrTaskTimeout is returned by QueryOne when the per-task timeout fires
	// before the source answers.
	ErrTaskTimeout = errors.New("procsnap: query timed out")
)

// EnumerationError means the process table itself could not be read. It is
// the only error that fails a whole snapshot.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate processes: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}
