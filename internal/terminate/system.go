package terminate

import (
	"context"
	"fmt"
	"slices"

	"github.com/shirou/gopsutil/v3/process"
)

// SystemControl signals real processes through gopsutil.
type SystemControl struct{}

// Terminate implements ProcessControl.
func (SystemControl) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return classify(err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Kill implements ProcessControl.
func (SystemControl) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return classify(err)
	}
	if err := p.KillWithContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Alive implements ProcessControl. A zombie has exited and only waits to be
// reaped by its parent, so it counts as dead.
func (SystemControl) Alive(ctx context.Context, pid int32) (bool, error) {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return false, classify(err)
	}
	if !exists {
		return false, nil
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if isGone(err) {
			return false, nil
		}
		return true, classify(err)
	}
	if status, err := p.StatusWithContext(ctx); err == nil && slices.Contains(status, process.Zombie) {
		return false, nil
	}
	return true, nil
}

// classify maps OS errors onto ErrNoSuchProcess and ErrPermission, keeping
// the original error in the chain.
func classify(err error) error {
	switch {
	case isGone(err):
		return fmt.Errorf("%w: %w", ErrNoSuchProcess, err)
	case isPermission(err):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	default:
		return err
	}
}
