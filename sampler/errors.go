package sampler

import "errors"

var (
	// ErrNoSuchProcess reports a kill aimed at a pid that does not exist.
	ErrNoSuchProcess = errors.New("no such process")

	// ErrPermissionDenied reports a kill the caller was not allowed to send.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupported reports a kill attempt on a platform without signal
	// support.
	ErrUnsupported = errors.New("kill not supported on this platform")
)
