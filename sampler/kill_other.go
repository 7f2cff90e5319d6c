//go:build !unix

package sampler

// killProcess reports kills as unsupported on platforms without unix
// signals.
func killProcess(pid int32) error {
	return ErrUnsupported
}
