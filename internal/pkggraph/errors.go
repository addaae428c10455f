package pkggraph

import (
	"fmt"
	"strings"
)

// DuplicatePackageError reports an attempt to add a package whose identity
// already exists in the graph.
type DuplicatePackageError struct {
	Name string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("duplicate package %q", e.Name)
}

// UnknownPackageError reports an edge endpoint that is not in the graph.
type UnknownPackageError struct {
	Name string
}

func (e *UnknownPackageError) Error() string {
	return fmt.Sprintf("unknown package %q", e.Name)
}

// CycleError reports a dependency cycle among normal+build edges, or within
// a filtered subgraph during ordering.
type CycleError struct {
	// Members are the packages known to participate in the cycle, in
	// dependency order where recoverable.
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving %s", strings.Join(e.Members, " -> "))
}
