package terminate

import (
	"context"
	"errors"
)

var (
	// ErrNoSuchProcess means the target does not exist (or already exited).
	ErrNoSuchProcess = errors.New("terminate: no such process")
	// ErrPermission means the caller may not signal the target.
	ErrPermission = errors.New("terminate: permission denied")
)

// ProcessControl is the OS surface the controller drives. Errors for a
// missing process must match ErrNoSuchProcess and errors for a refused
// signal must match ErrPermission under errors.Is.
type ProcessControl interface {
	// Terminate asks the process to exit (SIGTERM on unix).
	Terminate(ctx context.Context, pid int32) error
	// Kill ends the process unconditionally (SIGKILL on unix).
	Kill(ctx context.Context, pid int32) error
	// Alive reports whether the process still runs. Zombies are not alive.
	Alive(ctx context.Context, pid int32) (bool, error)
}
