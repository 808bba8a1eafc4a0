package expo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command describes a single child process invocation.
type Command struct {
	// Dir is the working directory of the child.
	Dir string
	// Env is the complete child environment in KEY=VALUE form.
	Env []string
	// Name is the executable looked up in PATH.
	Name string
	// Args are passed to the executable.
	Args []string
}

// String renders the command line for logs and errors.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Executor runs commands and returns their standard output.
type Executor interface {
	Run(ctx context.Context, cmd *Command) ([]byte, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cmd *Command) ([]byte, error)

// Run calls f(ctx, cmd).
func (f ExecutorFunc) Run(ctx context.Context, cmd *Command) ([]byte, error) {
	return f(ctx, cmd)
}

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct{}

// ExitError is returned when a child process fails.
type ExitError struct {
	// Command is the command line that failed.
	Command string
	// Output is what the child wrote to stderr.
	Output []byte
	// Err is the underlying os/exec error.
	Err error
}

// Error implements error.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if out := bytes.TrimSpace(e.Output); len(out) > 0 {
		msg += "\n" + string(out)
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run starts the command, waits for it and collects stdout.
func (ExecExecutor) Run(ctx context.Context, c *Command) ([]byte, error) {
	//nolint:gosec // The executable is the project's package runner.
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &ExitError{
			Command: c.String(),
			Output:  stderr.Bytes(),
			Err:     err,
		}
	}

	return stdout.Bytes(), nil
}
