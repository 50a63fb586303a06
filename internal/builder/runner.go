package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// exitNotStarted is reported when a child could not be started at all,
// matching what a shell reports for "command not found"
const exitNotStarted = 127

// Result is the outcome of a single child process
type Result struct {
	ExitCode int
	// Err is nil on a zero exit, an *exec.ExitError on a non-zero exit, or
	// the reason the process could not be started
	Err error
}

func (r Result) Success() bool { return r.Err == nil && r.ExitCode == 0 }

func (r Result) String() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return fmt.Sprintf("exit status %d", r.ExitCode)
}

// Runner spawns a child process and waits for it
type Runner interface {
	Run(ctx context.Context, dir string, cmd Command) Result
}

// ExecRunner runs commands with os/exec. Nil streams mean the parent's.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, dir string, c Command) Result {
	if len(c) == 0 {
		return Result{ExitCode: exitNotStarted, Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, c.Name(), c.Args()...)
	cmd.Dir = dir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if r.Stdin != nil {
		cmd.Stdin = r.Stdin
	}
	if r.Stdout != nil {
		cmd.Stdout = r.Stdout
	}
	if r.Stderr != nil {
		cmd.Stderr = r.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return Result{}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 1
		}
		return Result{ExitCode: code, Err: err}
	}
	return Result{ExitCode: exitNotStarted, Err: err}
}
