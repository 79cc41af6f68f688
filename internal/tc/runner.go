package tc

// CommandRunner abstracts invocation of the external `tc` binary so the
// Bakery's executor can be tested without a real netns/kernel, and so a
// dry-run storm-guard adjustment can be logged instead of executed.
type CommandRunner interface {
	// Run executes `tc` with the given argv, returning combined output on
	// failure for diagnostics.
	Run(argv ArgVec) error
}

// DefaultCommandRunner is the production runner, invoking the real `tc`
// binary via os/exec. Overridden in tests with a fake.
var DefaultCommandRunner CommandRunner = &RealCommandRunner{}
