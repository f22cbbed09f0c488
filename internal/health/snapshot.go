package health

import (
	"fmt"

	"github.com/breeze-rmm/memview/internal/procsnap"
)

// RecordSnapshot derives the snapshot component status from one refresh:
// unhealthy when the process table could not be read, degraded when rows
// were lost to the deadline or timeouts, healthy otherwise.
func (m *Monitor) RecordSnapshot(res *procsnap.Result, err error) {
	switch {
	case err != nil:
		m.Update(ComponentSnapshot, Unhealthy, err.Error())
	case res == nil:
		m.Update(ComponentSnapshot, Unknown, "no snapshot")
	case res.DeadlineExceeded:
		m.Update(ComponentSnapshot, Degraded,
			fmt.Sprintf("deadline reached: %d of %d processes collected", res.Completed, res.Requested))
	case res.TimedOut > 0:
		m.Update(ComponentSnapshot, Degraded,
			fmt.Sprintf("%d process queries timed out", res.TimedOut))
	default:
		m.Update(ComponentSnapshot, Healthy, "")
	}
}
