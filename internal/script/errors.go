package script

import "fmt"

// PreconditionUnmetError reports a build script whose required feature flag
// is not active. Declared distinguishes a flag that exists but was not
// resolved active from one the package never declared at all; the latter is
// a structural defect in the descriptor.
type PreconditionUnmetError struct {
	Package  string
	Flag     string
	Declared bool
}

func (e *PreconditionUnmetError) Error() string {
	if !e.Declared {
		return fmt.Sprintf("build script of %q requires feature %q, which the package does not declare", e.Package, e.Flag)
	}
	return fmt.Sprintf("build script of %q requires feature %q, which is not active", e.Package, e.Flag)
}

// FailedError reports a build script that ran and failed: a nonzero exit, or
// directive output the executor could not interpret (Cause set).
type FailedError struct {
	Package  string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *FailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("build script of %q failed: %v", e.Package, e.Cause)
	}
	return fmt.Sprintf("build script of %q exited with code %d: %s", e.Package, e.ExitCode, e.Stderr)
}

func (e *FailedError) Unwrap() error { return e.Cause }
