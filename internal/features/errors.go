package features

import "fmt"

// UnknownFlagError reports a request or implication referencing a flag the
// named package never declared.
type UnknownFlagError struct {
	Package string
	Flag    string
}

func (e *UnknownFlagError) Error() string {
	return fmt.Sprintf("package %q does not declare feature %q", e.Package, e.Flag)
}

// ImplicationCycleError reports a feature whose implications loop back onto
// itself within one package. Rejected structurally rather than silently
// accepted as a fixed point.
type ImplicationCycleError struct {
	Package string
	Flag    string
}

func (e *ImplicationCycleError) Error() string {
	return fmt.Sprintf("feature implication cycle in package %q involving %q", e.Package, e.Flag)
}
