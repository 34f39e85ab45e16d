// Package bitwarden drives the Bitwarden CLI (bw) as a subprocess: a Client
// executes single subcommands and classifies their output, and a Session
// wraps an unlock token and its validity.
package bitwarden

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
	pkgexec "github.com/systmms/secretmenu/pkg/exec"
)

const (
	// DefaultBinary is the bw executable looked up in PATH.
	DefaultBinary = "bw"

	// SessionEnv carries the session token to bw. Tokens are never passed
	// as arguments because arguments are visible in process listings.
	SessionEnv = "BW_SESSION"

	decryptFailureBanner = "Failed to decrypt."
)

// Client runs bw subcommands. It performs exactly one attempt per call.
type Client struct {
	binary   string
	executor pkgexec.CommandExecutor
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBinary overrides the bw executable.
func WithBinary(binary string) ClientOption {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithExecutor injects the command executor, primarily for tests.
func WithExecutor(e pkgexec.CommandExecutor) ClientOption {
	return func(c *Client) { c.executor = e }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records every invocation on m.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the bw executable.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		binary:   DefaultBinary,
		executor: pkgexec.DefaultExecutor(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// Call describes one bw invocation.
type Call struct {
	Args []string
	// Token is exported as BW_SESSION when non-empty.
	Token string
	// Input is written to bw's standard input.
	Input []byte
}

// Run executes the call and returns its standard output. Output carrying
// the decryption failure banner yields ErrDecryptionFailed, non-UTF-8 output
// yields ErrEncoding and a failed exit yields *CommandError.
func (c *Client) Run(ctx context.Context, call Call) ([]byte, error) {
	subcommand := subcommandOf(call.Args)
	start := time.Now()

	stdout, err := c.run(ctx, call)

	c.metrics.ObserveVaultCall(subcommand, time.Since(start), err)
	if err != nil {
		c.logger.Debug("bw %s failed: %v", strings.Join(call.Args, " "), err)
	}
	return stdout, err
}

func (c *Client) run(ctx context.Context, call Call) ([]byte, error) {
	cmd := pkgexec.Command{
		Name:  c.binary,
		Args:  call.Args,
		Stdin: call.Input,
	}
	if call.Token != "" {
		cmd.Env = []string{SessionEnv + "=" + call.Token}
	}

	c.logger.Debug("Running %s %s", c.binary, strings.Join(call.Args, " "))

	stdout, stderr, err := c.executor.Execute(ctx, cmd)

	if bytes.HasPrefix(bytes.TrimSpace(stdout), []byte(decryptFailureBanner)) ||
		bytes.HasPrefix(bytes.TrimSpace(stderr), []byte(decryptFailureBanner)) {
		return nil, ErrDecryptionFailed
	}

	if err != nil {
		cmdErr := &CommandError{
			Subcommand: subcommandOf(call.Args),
			Stderr:     excerpt(stderr),
			Err:        err,
		}
		if code, ok := pkgexec.ExitCode(err); ok {
			cmdErr.ExitCode = code
			cmdErr.Exited = true
		}
		if isNotFound(stderr) {
			return nil, &notFoundError{cmdErr}
		}
		return nil, cmdErr
	}

	if !utf8.Valid(stdout) {
		return nil, ErrEncoding
	}

	return stdout, nil
}

// RunJSON executes the call and decodes its output into v.
func (c *Client) RunJSON(ctx context.Context, call Call, v any) error {
	out, err := c.Run(ctx, call)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return &ProtocolError{
			Subcommand: subcommandOf(call.Args),
			Excerpt:    excerpt(out),
			Err:        err,
		}
	}
	return nil
}

func subcommandOf(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func isNotFound(stderr []byte) bool {
	s := strings.TrimSpace(string(stderr))
	return strings.HasPrefix(s, "Not found")
}

// notFoundError keeps the command details while matching ErrNotFound.
type notFoundError struct {
	*CommandError
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *notFoundError) Unwrap() error {
	return e.CommandError
}
