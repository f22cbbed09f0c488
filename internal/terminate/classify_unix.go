//go:build !windows

package terminate

import (
	"errors"
	"os"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

func isGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, unix.ESRCH) ||
		errors.Is(err, os.ErrProcessDone)
}

func isPermission(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, os.ErrPermission)
}
