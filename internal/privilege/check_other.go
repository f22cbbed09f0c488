//go:build !windows

package privilege

import "os"

// IsRunningAsRoot returns true if memview is running with UID 0 (root).
func IsRunningAsRoot() bool {
	return os.Geteuid() == 0
}
