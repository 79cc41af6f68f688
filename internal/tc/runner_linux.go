//go:build linux

package tc

import (
	"fmt"
	"os/exec"
)

// RealCommandRunner shells out to the `tc` binary.
type RealCommandRunner struct {
	// Binary overrides the executable name/path, for tests that want to
	// point at a recording shim instead of the real `tc`.
	Binary string
}

// Run executes `tc <argv...>` and returns an error wrapping combined output
// on non-zero exit.
func (r *RealCommandRunner) Run(argv ArgVec) error {
	bin := r.Binary
	if bin == "" {
		bin = "tc"
	}
	cmd := exec.Command(bin, argv...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: tc %v: %v: %s", ErrDispatchFailure, argv, err, string(out))
	}
	return nil
}
