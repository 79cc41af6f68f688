//go:build !linux

package tc

import "fmt"

// RealCommandRunner is a stub on non-Linux platforms; `tc`/HTB is a Linux
// kernel facility and has no equivalent elsewhere.
type RealCommandRunner struct {
	Binary string
}

// Run always fails on non-Linux platforms.
func (r *RealCommandRunner) Run(argv ArgVec) error {
	return fmt.Errorf("%w: tc is only available on linux", ErrDispatchFailure)
}
