package privilege

import (
	"fmt"
	"runtime"
)

// ElevationHint returns the advice shown when a kill is refused for lack of
// privileges, or "" when the process already runs elevated.
func ElevationHint(pid int32) string {
	if IsRunningAsRoot() {
		return ""
	}
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("process %d belongs to another user; re-run memview from an Administrator prompt", pid)
	}
	return fmt.Sprintf("process %d belongs to another user; re-run with sudo to kill it", pid)
}
