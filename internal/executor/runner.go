package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one process invocation.
type Command struct {
	// Name is the executable looked up in PATH.
	Name string
	// Args are passed verbatim, without a shell.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd, streaming its output, and fails on a non-zero exit.
	Run(ctx context.Context, cmd Command) error
	// Output executes cmd and returns its standard output.
	Output(ctx context.Context, cmd Command) ([]byte, error)
	// LookPath reports whether an executable is available.
	LookPath(name string) (string, error)
}

// ExitError reports a command that ran and exited with a non-zero status.
type ExitError struct {
	// Command is the rendered command line.
	Command string
	// Code is the exit status.
	Code int
	// Stderr holds captured standard error, when it was captured.
	Stderr string
}

// Error implements error.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}

	return msg
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExecRunner creates a runner streaming child output to the process stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{stdout: os.Stdout, stderr: os.Stderr}
}

// NewExecRunnerWithOutput creates a runner streaming child output to the given writers.
func NewExecRunnerWithOutput(stdout, stderr io.Writer) *ExecRunner {
	return &ExecRunner{stdout: stdout, stderr: stderr}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	//nolint:gosec // G204: Commands are assembled by the pipeline, never from raw user input.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = r.stdout
	c.Stderr = r.stderr

	return wrapExit(cmd, c.Run(), "")
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	var stderr bytes.Buffer

	//nolint:gosec // G204: Commands are assembled by the pipeline, never from raw user input.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stderr = &stderr

	out, err := c.Output()

	return out, wrapExit(cmd, err, stderr.String())
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// wrapExit converts *exec.ExitError into *ExitError and annotates other failures.
func wrapExit(cmd Command, err error, stderr string) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: cmd.String(), Code: exitErr.ExitCode(), Stderr: stderr}
	}

	return fmt.Errorf("run %q: %w", cmd.String(), err)
}
