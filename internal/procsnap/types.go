package procsnap

import (
	"slices"
	"time"
)

// Status is the normalized scheduler state of a process.
type Status string

const (
	StatusRunning  Status = "running"
	StatusSleeping Status = "sleeping"
	StatusIdle     Status = "idle"
	StatusStopped  Status = "stopped"
	StatusZombie   Status = "zombie"
	StatusWaiting  Status = "waiting"
	StatusLocked   Status = "locked"
	StatusUnknown  Status = "unknown"
)

// Row is one process in a snapshot. Rows are values; nothing in this
// package keeps a reference to a returned row.
type Row struct {
	PID         int32  `json:"pid" yaml:"pid"`
	Name        string `json:"name" yaml:"name"`
	MemoryBytes uint64 `json:"memoryBytes" yaml:"memoryBytes"`
	Status      Status `json:"status" yaml:"status"`
}

// Result is the outcome of a single TakeSnapshot call.
//
// Completed is always <= Requested. A shortfall means the deadline or
// per-task timeouts cut collection short; it is not an error.
// TotalMemoryBytes sums Rows only, so it understates the host total whenever
// the result is partial.
type Result struct {
	Rows             []Row         `json:"rows" yaml:"rows"`
	Requested        int           `json:"requested" yaml:"requested"`
	Completed        int           `json:"completed" yaml:"completed"`
	TotalMemoryBytes uint64        `json:"totalMemoryBytes" yaml:"totalMemoryBytes"`
	TakenAt          time.Time     `json:"takenAt" yaml:"takenAt"`
	Sort             SortKey       `json:"sort" yaml:"sort"`
	TimedOut         int           `json:"timedOut" yaml:"timedOut"`
	Skipped          int           `json:"skipped" yaml:"skipped"`
	DeadlineExceeded bool          `json:"deadlineExceeded" yaml:"deadlineExceeded"`
	Duration         time.Duration `json:"durationNs" yaml:"durationNs"`
}

// Partial reports whether some enumerated processes produced no row.
func (r *Result) Partial() bool {
	return r.Completed < r.Requested
}

// Reorder returns a copy of the result with rows sorted by key. The receiver
// is left untouched, so a display-only resort never needs a new collection.
func (r *Result) Reorder(key SortKey) *Result {
	out := *r
	out.Rows = Reorder(r.Rows, key)
	out.Sort = key.normalize()
	return &out
}

// Limit returns a copy holding at most the first n rows. Completed and
// TotalMemoryBytes describe the kept rows, so the copy stays self-consistent;
// Requested is unchanged. n <= 0 keeps every row.
func (r *Result) Limit(n int) *Result {
	out := *r
	if n <= 0 || n >= len(r.Rows) {
		return &out
	}
	out.Rows = slices.Clone(r.Rows[:n])
	out.Completed = n
	out.TotalMemoryBytes = sumMemory(out.Rows)
	return &out
}

func sumMemory(rows []Row) uint64 {
	var total uint64
	for _, row := range rows {
		total += row.MemoryBytes
	}
	return total
}
