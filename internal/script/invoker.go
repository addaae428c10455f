package script

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Invocation is everything needed to run one package's build script.
type Invocation struct {
	Package string
	// Dir is the working directory, the package's own directory.
	Dir string
	// Path is the script program, resolved relative to Dir.
	Path string
	// Env is the complete environment, not additions to the parent's.
	Env []string
}

// Result is the observable outcome of a script run. The executor interprets
// Stdout line by line; Stderr is diagnostics only.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Invoker runs build scripts. Tests substitute a fake; the engine uses
// ExecInvoker.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// ExecInvoker runs scripts as real subprocesses.
type ExecInvoker struct{}

func (ExecInvoker) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	cmd := exec.CommandContext(ctx, inv.Path)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		// A nonzero exit is a result, not an invocation error.
		res.ExitCode = exitErr.ExitCode()
	default:
		return Result{}, err
	}
	return res, nil
}
