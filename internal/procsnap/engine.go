package procsnap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/breeze-rmm/memview/internal/logging"
	"github.com/breeze-rmm/memview/internal/workerpool"
)

var log = logging.L("procsnap")

const (
	DefaultDeadline    = 10 * time.Second
	DefaultTaskTimeout = 2 * time.Second
	DefaultWorkers     = 50
)

// Options control a single snapshot. Zero TaskTimeout, Workers and Sort take
// the defaults above; Deadline is the exception, see below.
type Options struct {
	// Deadline bounds the whole collection phase, enumeration included.
	// Zero is honored: no time is spent waiting on queries and the result
	// carries Requested with no rows. A negative value takes DefaultDeadline.
	Deadline time.Duration
	// TaskTimeout bounds one process query. It is kept strictly below Deadline.
	TaskTimeout time.Duration
	// Workers is the number of concurrent queries.
	Workers int
	// Sort orders the returned rows.
	Sort SortKey
}

func (o Options) withDefaults() Options {
	if o.Deadline < 0 {
		o.Deadline = DefaultDeadline
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = DefaultTaskTimeout
	}
	if o.TaskTimeout >= o.Deadline {
		o.TaskTimeout = o.Deadline / 2
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	o.Sort = o.Sort.normalize()
	return o
}

// Engine takes process snapshots. It holds no state between calls and is
// safe for concurrent use, although callers are expected to keep at most one
// snapshot in flight.
type Engine struct {
	source Source
}

// NewEngine returns an engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// TakeSnapshot enumerates processes and queries each one on a bounded worker
// pool. It returns once every query finished or the deadline elapsed,
// whichever comes first, with the rows that completed in time.
//
// The only error is *EnumerationError, or ctx.Err() when ctx is already done
// on entry.
func (e *Engine) TakeSnapshot(ctx context.Context, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	pids, err := e.source.PIDs(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// the budget ran out during enumeration; nothing was requested yet
		log.Warn("snapshot deadline reached during enumeration", "deadline", opts.Deadline)
		return &Result{
			Rows:             []Row{},
			TakenAt:          start,
			Sort:             opts.Sort,
			DeadlineExceeded: true,
			Duration:         time.Since(start),
		}, nil
	}
	if err != nil {
		log.Error("process enumeration failed", "error", err)
		return nil, &EnumerationError{Err: err}
	}

	acc := newAccumulator(len(pids))
	workers := min(opts.Workers, max(len(pids), 1))
	pool := workerpool.New(workers, max(len(pids), 1))
	for _, pid := range pids {
		ok := pool.Submit(func() {
			e.runTask(ctx, pid, opts.TaskTimeout, acc)
		})
		if !ok {
			acc.skip()
		}
	}

	drainErr := pool.Shutdown(ctx)
	expired := errors.Is(ctx.Err(), context.DeadlineExceeded)
	rows, timedOut, skipped := acc.seal()
	skipped += int(pool.Panics())

	sortRows(rows, opts.Sort)
	res := &Result{
		Rows:             rows,
		Requested:        len(pids),
		Completed:        len(rows),
		TotalMemoryBytes: sumMemory(rows),
		TakenAt:          start,
		Sort:             opts.Sort,
		TimedOut:         timedOut,
		Skipped:          skipped,
		DeadlineExceeded: errors.Is(drainErr, context.DeadlineExceeded) || (expired && len(rows) < len(pids)),
		Duration:         time.Since(start),
	}

	if res.DeadlineExceeded {
		log.Warn("snapshot deadline reached, returning partial results",
			"requested", res.Requested,
			"completed", res.Completed,
			"deadline", opts.Deadline)
	} else {
		log.Info("snapshot complete",
			"requested", res.Requested,
			"completed", res.Completed,
			"timedOut", res.TimedOut,
			"skipped", res.Skipped,
			logging.KeyDurationMs, res.Duration.Milliseconds())
	}
	return res, nil
}

func (e *Engine) runTask(ctx context.Context, pid int32, timeout time.Duration, acc *accumulator) {
	if ctx.Err() != nil {
		// deadline already passed while queued
		return
	}

	row, err := e.QueryOne(ctx, pid, timeout)
	switch {
	case err == nil:
		acc.add(row)
	case errors.Is(err, ErrTaskTimeout):
		log.Debug("process query timed out", logging.KeyPID, pid, "timeout", timeout)
		acc.timeout()
	case ctx.Err() != nil:
		// cut by the global deadline, counted as outstanding
	default:
		log.Debug("process skipped", logging.KeyPID, pid, logging.KeyError, err)
		acc.skip()
	}
}

// QueryOne reads a single process with its own timeout. The source call runs
// on a separate goroutine so that a query stuck in the kernel is abandoned
// when the timeout fires and the calling worker can move on. The abandoned
// call finishes in the background and its result is dropped.
func (e *Engine) QueryOne(ctx context.Context, pid int32, timeout time.Duration) (Row, error) {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		row Row
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("process query panicked", logging.KeyPID, pid, "panic", r)
				ch <- answer{err: fmt.Errorf("%w: query panicked: %v", ErrSkip, r)}
			}
		}()
		row, err := e.source.Query(taskCtx, pid)
		ch <- answer{row: row, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			// a source honoring taskCtx reports the timeout as its own error
			if taskCtx.Err() != nil {
				if err := ctx.Err(); err != nil {
					return Row{}, err
				}
				return Row{}, ErrTaskTimeout
			}
			return Row{}, a.err
		}
		a.row.PID = pid
		if a.row.Status == "" {
			a.row.Status = StatusUnknown
		}
		return a.row, nil
	case <-taskCtx.Done():
		if err := ctx.Err(); err != nil {
			return Row{}, err
		}
		return Row{}, ErrTaskTimeout
	}
}

// accumulator collects rows from concurrent workers. Once sealed it ignores
// late arrivals, so a result handed to the caller never changes.
type accumulator struct {
	mu       sync.Mutex
	rows     []Row
	timedOut int
	skipped  int
	sealed   bool
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{rows: make([]Row, 0, capacity)}
}

func (a *accumulator) add(row Row) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed {
		a.rows = append(a.rows, row)
	}
}

func (a *accumulator) timeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed {
		a.timedOut++
	}
}

func (a *accumulator) skip() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed {
		a.skipped++
	}
}

func (a *accumulator) seal() ([]Row, int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
	return a.rows, a.timedOut, a.skipped
}
