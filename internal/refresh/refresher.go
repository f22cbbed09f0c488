package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/breeze-rmm/memview/internal/health"
	"github.com/breeze-rmm/memview/internal/logging"
	"github.com/breeze-rmm/memview/internal/metrics"
	"github.com/breeze-rmm/memview/internal/procsnap"
)

var log = logging.L("refresh")

// ErrInProgress is returned by Refresh when another refresh is still running.
var ErrInProgress = errors.New("refresh already in progress")

// MinInterval is the shortest auto-refresh period Run accepts.
const MinInterval = time.Second

// Snapshotter is the part of procsnap.Engine the refresher drives.
type Snapshotter interface {
	TakeSnapshot(ctx context.Context, opts procsnap.Options) (*procsnap.Result, error)
}

// Refresher runs snapshots on demand and on a timer, never more than one at
// a time. It remembers the current sort key so that every refresh returns
// rows in the order the user last picked.
type Refresher struct {
	engine Snapshotter
	opts   procsnap.Options
	health *health.Monitor

	guard Guard

	mu   sync.Mutex
	sort procsnap.SortKey
	last *procsnap.Result
}

// New returns a refresher. opts.Sort seeds the initial sort key; a zero key
// means memory descending. mon may be nil.
func New(engine Snapshotter, opts procsnap.Options, mon *health.Monitor) *Refresher {
	sort := opts.Sort
	if sort.Column == "" {
		sort = procsnap.DefaultSortKey()
	}
	return &Refresher{
		engine: engine,
		opts:   opts,
		health: mon,
		sort:   sort,
	}
}

// Sort returns the current sort key.
func (r *Refresher) Sort() procsnap.SortKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sort
}

// SetSort replaces the sort key and returns the last result reordered under
// it, or nil when nothing has been collected yet. No new snapshot is taken.
func (r *Refresher) SetSort(key procsnap.SortKey) *procsnap.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setSortLocked(key)
}

// ToggleSort applies procsnap.SortKey.Toggle for column, the header-click
// behaviour, and returns the reordered last result. Concurrent toggles are
// serialized, each one starting from the key the previous one produced.
func (r *Refresher) ToggleSort(column procsnap.Column) *procsnap.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setSortLocked(r.sort.Toggle(column))
}

// setSortLocked requires r.mu.
func (r *Refresher) setSortLocked(key procsnap.SortKey) *procsnap.Result {
	r.sort = key
	if r.last == nil {
		return nil
	}
	r.last = r.last.Reorder(key)
	return r.last
}

// Last returns the most recent successful result, or nil.
func (r *Refresher) Last() *procsnap.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// InProgress reports whether a refresh is running.
func (r *Refresher) InProgress() bool {
	return r.guard.Busy()
}

// Refresh takes one snapshot. If a refresh is already running it returns
// ErrInProgress immediately without queueing.
func (r *Refresher) Refresh(ctx context.Context) (*procsnap.Result, error) {
	if !r.guard.TryAcquire() {
		metrics.ObserveDroppedRefresh()
		log.Debug("refresh dropped, previous one still running")
		return nil, ErrInProgress
	}
	defer r.guard.Release()

	opts := r.opts
	opts.Sort = r.Sort()

	res, err := r.engine.TakeSnapshot(ctx, opts)
	metrics.ObserveSnapshot(res, err)
	if err != nil && ctx.Err() != nil {
		// shutting down, not a health problem
		return nil, err
	}
	if r.health != nil {
		r.health.RecordSnapshot(res, err)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// the sort may have changed while collecting
	if res.Sort != r.sort {
		res = res.Reorder(r.sort)
	}
	r.last = res
	r.mu.Unlock()
	return res, nil
}

// Run refreshes immediately and then every interval until ctx is done,
// handing each successful result to fn. Ticks that fire while a refresh is
// still running are dropped. Snapshot errors are logged and Run keeps going.
func (r *Refresher) Run(ctx context.Context, interval time.Duration, fn func(*procsnap.Result)) {
	if interval < MinInterval {
		interval = MinInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	trigger := func() {
		if r.guard.Busy() {
			metrics.ObserveDroppedRefresh()
			log.Debug("auto-refresh tick dropped, previous refresh still running")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Refresh(ctx)
			switch {
			case errors.Is(err, ErrInProgress):
			case err != nil:
				if ctx.Err() == nil {
					log.Warn("auto-refresh failed", "error", err)
				}
			case fn != nil:
				fn(res)
			}
		}()
	}

	trigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trigger()
		}
	}
}
