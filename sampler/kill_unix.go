//go:build unix

package sampler

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// killProcess sends SIGKILL to pid, mapping the syscall errors the caller
// branches on.
func killProcess(pid int32) error {
	err := unix.Kill(int(pid), unix.SIGKILL)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return ErrNoSuchProcess
	case errors.Is(err, unix.EPERM):
		return ErrPermissionDenied
	default:
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
}
