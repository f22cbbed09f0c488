//go:build windows

package terminate

import (
	"errors"
	"os"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

// OpenProcess on a pid that is not in use fails with ERROR_INVALID_PARAMETER.
func isGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, windows.ERROR_INVALID_PARAMETER) ||
		errors.Is(err, os.ErrProcessDone)
}

func isPermission(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, os.ErrPermission)
}
