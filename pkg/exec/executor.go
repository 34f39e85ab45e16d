// Package exec provides abstractions for command execution.
// This package enables testable code by allowing CLI commands to be mocked.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Command describes a single subprocess invocation.
type Command struct {
	Name string
	Args []string

	// Env is appended to the parent environment. Values that must not show up
	// in process listings (session tokens) belong here, never in Args.
	Env []string

	// Stdin is written to the child's standard input before it is closed.
	// A nil Stdin leaves standard input empty.
	Stdin []byte

	// Dir is the working directory; empty means the current one.
	Dir string
}

// CommandExecutor defines an interface for executing shell commands.
// This abstraction allows for mocking CLI tool behavior in tests.
type CommandExecutor interface {
	// Execute runs a command with the given context.
	// Returns stdout, stderr, and any error that occurred. Stdout is returned
	// even when the command exits with a non-zero status.
	Execute(ctx context.Context, cmd Command) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes actual shell commands using os/exec.
// This is the production implementation.
type RealCommandExecutor struct{}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, c Command) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the standard production executor.
// This is used as the default when no executor is injected.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}

// exitCoder is satisfied by *exec.ExitError and by test doubles.
type exitCoder interface {
	ExitCode() int
}

// ExitCode extracts the process exit status from an Execute error.
// It reports false when the error does not carry an exit status, for
// example when the binary could not be started at all.
func ExitCode(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode(), true
	}
	return -1, false
}

// LookPath reports whether the named binary can be found in PATH.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
