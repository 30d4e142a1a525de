// Package run executes external commands with bounded lifetimes.
//
// Every interaction with the modem toolchain and the USB utilities goes
// through a Runner, so the rest of the code never touches os/exec directly
// and tests can substitute a mock.
package run

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

//go:generate mockgen -source=run.go -destination=mock_run.go -package=run

// Result captures the outcome of a finished command.
type Result struct {
	// ExitCode is the process exit status. It is -1 when the process
	// did not run to completion (start failure, killed on timeout).
	ExitCode int
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
}

// Ok reports whether the command exited with status zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// Runner runs a command and waits for it to finish.
//
// Implementations must honor context cancellation and deadlines: a command
// must never outlive its context. The returned Result carries whatever
// output was produced even when err is non-nil.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// Run starts name with args and waits for completion or context expiry.
// A non-zero exit status is not an error here; callers inspect
// Result.ExitCode. The error return is reserved for the command not
// running at all (missing binary, context expired).
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}

	res.ExitCode = 0
	return res, nil
}
