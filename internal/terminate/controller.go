package terminate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/breeze-rmm/memview/internal/logging"
)

var log = logging.L("terminate")

const (
	DefaultGracePeriod    = 3 * time.Second
	DefaultConfirmTimeout = 2 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
)

// Controller kills processes with a terminate, wait, kill escalation.
// A Controller holds no per-request state; concurrent KillProcess calls for
// different pids are independent.
type Controller struct {
	control        ProcessControl
	pollInterval   time.Duration
	confirmTimeout time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets how often liveness is checked while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithConfirmTimeout sets how long to wait for exit after the forceful kill.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.confirmTimeout = d
		}
	}
}

// NewController returns a controller driving control.
func NewController(control ProcessControl, opts ...Option) *Controller {
	c := &Controller{
		control:        control,
		pollInterval:   DefaultPollInterval,
		confirmTimeout: DefaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KillProcess stops pid. It sends a graceful stop, waits up to grace for the
// process to exit, then escalates to a forceful kill and waits a short,
// bounded time for confirmation. It always returns an Outcome; permission and
// liveness races are ordinary results, not errors.
func (c *Controller) KillProcess(ctx context.Context, pid int32, grace time.Duration) Outcome {
	l := logging.WithPID(log, pid)

	// kill(0) and kill(-1) address process groups, never a single process
	if pid <= 0 {
		return c.finish(l, Outcome{Kind: Failed, PID: pid, Detail: fmt.Sprintf("invalid pid %d", pid)})
	}
	if grace < 0 {
		grace = 0
	}

	l.Debug("sending graceful stop")
	if err := c.control.Terminate(ctx, pid); err != nil {
		switch {
		case errors.Is(err, ErrNoSuchProcess):
			return c.finish(l, Outcome{Kind: AlreadyGone, PID: pid})
		case errors.Is(err, ErrPermission):
			return c.finish(l, Outcome{Kind: PermissionDenied, PID: pid, Detail: err.Error()})
		default:
			return c.finish(l, Outcome{Kind: Failed, PID: pid, Detail: fmt.Sprintf("graceful stop: %v", err)})
		}
	}

	l.Debug("waiting for exit", "grace", grace)
	exited, err := c.waitExit(ctx, pid, grace)
	if err != nil {
		return c.finish(l, Outcome{Kind: Failed, PID: pid, Detail: fmt.Sprintf("waiting for exit: %v", err)})
	}
	if exited {
		return c.finish(l, Outcome{Kind: Killed, PID: pid})
	}

	l.Debug("grace period elapsed, escalating to forceful kill")
	if err := c.control.Kill(ctx, pid); err != nil {
		if errors.Is(err, ErrNoSuchProcess) {
			// exited between the last liveness check and the kill
			return c.finish(l, Outcome{Kind: Killed, PID: pid})
		}
		return c.finish(l, Outcome{Kind: Failed, PID: pid, Escalated: true, Detail: fmt.Sprintf("forceful kill: %v", err)})
	}

	exited, err = c.waitExit(ctx, pid, c.confirmTimeout)
	if err != nil {
		return c.finish(l, Outcome{Kind: Failed, PID: pid, Escalated: true, Detail: fmt.Sprintf("confirming exit: %v", err)})
	}
	if !exited {
		return c.finish(l, Outcome{
			Kind:      Failed,
			PID:       pid,
			Escalated: true,
			Detail:    fmt.Sprintf("process still alive %v after forceful kill", c.confirmTimeout),
		})
	}
	return c.finish(l, Outcome{Kind: Killed, PID: pid, Escalated: true})
}

// waitExit polls liveness until the process is gone or timeout elapses.
// Only a done ctx is returned as an error; liveness check errors other than
// "no such process" are treated as "still alive" and retried.
func (c *Controller) waitExit(ctx context.Context, pid int32, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		alive, err := c.control.Alive(ctx, pid)
		if errors.Is(err, ErrNoSuchProcess) || (err == nil && !alive) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			// one last look so a process exiting right at the deadline counts
			alive, err := c.control.Alive(ctx, pid)
			return errors.Is(err, ErrNoSuchProcess) || (err == nil && !alive), nil
		case <-ticker.C:
		}
	}
}

func (c *Controller) finish(l *slog.Logger, o Outcome) Outcome {
	if o.IsSuccess() {
		l.Info("kill request finished", "outcome", string(o.Kind), "escalated", o.Escalated)
	} else {
		l.Warn("kill request failed", "outcome", string(o.Kind), "detail", o.Detail)
	}
	return o
}
