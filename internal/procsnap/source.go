package procsnap

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Source reads process state from the operating system.
type Source interface {
	// PIDs lists the currently visible process ids. It should be a single
	// fast call; a failure here fails the whole snapshot.
	PIDs(ctx context.Context) ([]int32, error)

	// Query reads one process. Returning an error (usually wrapping ErrSkip)
	// means the process produces no row.
	Query(ctx context.Context, pid int32) (Row, error)
}

// SystemSource reads the local process table through gopsutil.
type SystemSource struct{}

// PIDs implements Source.
func (SystemSource) PIDs(ctx context.Context) ([]int32, error) {
	return process.PidsWithContext(ctx)
}

// Query implements Source. The name is required; memory and status fall back
// to 0 and StatusUnknown when the OS refuses them.
func (SystemSource) Query(ctx context.Context, pid int32) (Row, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return Row{}, fmt.Errorf("%w: open pid %d: %w", ErrSkip, pid, err)
	}

	name, err := p.NameWithContext(ctx)
	if err != nil {
		return Row{}, fmt.Errorf("%w: name of pid %d: %w", ErrSkip, pid, err)
	}

	row := Row{
		PID:    pid,
		Name:   name,
		Status: StatusUnknown,
	}

	if memInfo, err := p.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		row.MemoryBytes = memInfo.RSS
	}

	if status, err := p.StatusWithContext(ctx); err == nil {
		row.Status = statusFromOS(status)
	}

	return row, nil
}

// statusFromOS maps gopsutil's status strings onto Status. gopsutil reports
// a list; the first entry is the primary state.
func statusFromOS(states []string) Status {
	if len(states) == 0 {
		return StatusUnknown
	}
	switch states[0] {
	case process.Running:
		return StatusRunning
	case process.Sleep:
		return StatusSleeping
	case process.Idle:
		return StatusIdle
	case process.Stop:
		return StatusStopped
	case process.Zombie:
		return StatusZombie
	case process.Wait, process.Blocked:
		return StatusWaiting
	case process.Lock:
		return StatusLocked
	default:
		return StatusUnknown
	}
}
