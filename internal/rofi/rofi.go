// Package rofi drives rofi in dmenu mode: candidates go in on stdin, the
// selection comes back on stdout and the exit status says how the window
// was closed.
package rofi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/systmms/secretmenu/internal/logging"
	pkgexec "github.com/systmms/secretmenu/pkg/exec"
)

const (
	defaultBinary = "rofi"
	defaultLines  = 10

	exitCancel         = 1
	exitCustomKeyFirst = 10
	exitCustomKeyLast  = 28
)

// ErrNotEntry is returned by Response.Selection when no entry was chosen.
var ErrNotEntry = errors.New("rofi: expected an entry as response")

// ExitCodeError reports an exit status outside the dmenu protocol.
type ExitCodeError struct {
	Code   int
	Stderr string
}

func (e *ExitCodeError) Error() string {
	msg := fmt.Sprintf("rofi: unexpected exit code: %d", e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Kind tells how the window was closed.
type Kind int

const (
	KindEntry Kind = iota + 1
	KindCancel
	KindCustomKey
)

// Response is the outcome of one Show.
type Response struct {
	Kind Kind
	// Text is the trimmed selection for KindEntry.
	Text string
	// Key is the custom key index (1..19) for KindCustomKey.
	Key int
}

// Entry builds an entry response.
func Entry(text string) Response { return Response{Kind: KindEntry, Text: text} }

// Cancel builds a cancel response.
func Cancel() Response { return Response{Kind: KindCancel} }

// CustomKey builds a custom key response.
func CustomKey(key int) Response { return Response{Kind: KindCustomKey, Key: key} }

// Selection returns the chosen entry.
func (r Response) Selection() (string, error) {
	if r.Kind != KindEntry {
		return "", ErrNotEntry
	}
	return r.Text, nil
}

// Window describes the rofi invocation. The zero value is not useful; start
// from NewWindow. Builder methods return modified copies.
type Window struct {
	prompt   string
	message  string
	lines    int
	password bool
	extra    []string
}

// NewWindow returns a window with the given prompt and ten visible lines.
func NewWindow(prompt string) Window {
	return Window{prompt: prompt, lines: defaultLines}
}

// Message sets the pango-markup message shown below the input.
func (w Window) Message(msg string) Window {
	w.message = msg
	return w
}

// Lines sets the number of visible candidate lines.
func (w Window) Lines(lines int) Window {
	w.lines = lines
	return w
}

// Password hides typed input.
func (w Window) Password(password bool) Window {
	w.password = password
	return w
}

// Format sets rofi's output format; "i" prints the index of the selected
// candidate instead of its text.
func (w Window) Format(format string) Window {
	return w.Args("-format", format)
}

// Matching selects the matching algorithm (normal, regex, glob, fuzzy).
func (w Window) Matching(algo string) Window {
	return w.Args("-matching", algo)
}

// CustomKey binds key to custom keybinding idx. Pressing it closes the
// window with CustomKey(idx).
func (w Window) CustomKey(idx int, key string) Window {
	return w.Args("-kb-custom-"+strconv.Itoa(idx), key)
}

// Args appends raw arguments.
func (w Window) Args(args ...string) Window {
	w.extra = append(append([]string(nil), w.extra...), args...)
	return w
}

// Argv renders the command line arguments.
func (w Window) Argv() []string {
	args := []string{"-p", w.prompt}
	if w.message != "" {
		args = append(args, "-mesg", w.message)
	}
	args = append(args, "-lines", strconv.Itoa(w.lines))
	if w.password {
		args = append(args, "-password")
	}
	return append(args, w.extra...)
}

// Client runs rofi windows.
type Client struct {
	binary   string
	executor pkgexec.CommandExecutor
	logger   *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the rofi executable.
func WithBinary(binary string) Option {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithExecutor injects the subprocess runner.
func WithExecutor(executor pkgexec.CommandExecutor) Option {
	return func(c *Client) {
		if executor != nil {
			c.executor = executor
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the rofi binary on PATH.
func NewClient(opts ...Option) *Client {
	c := &Client{
		binary:   defaultBinary,
		executor: pkgexec.DefaultExecutor(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Show displays w with options as candidates and waits for it to close.
func (c *Client) Show(ctx context.Context, w Window, options []string) (Response, error) {
	cmd := pkgexec.Command{
		Name:  c.binary,
		Args:  w.Argv(),
		Stdin: []byte(strings.Join(options, "\n")),
	}
	c.logger.Debug("rofi %s (%d candidates)", strings.Join(cmd.Args, " "), len(options))

	stdout, stderr, err := c.executor.Execute(ctx, cmd)
	if err != nil && ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	code, ok := pkgexec.ExitCode(err)
	if !ok {
		return Response{}, fmt.Errorf("run %s: %w", c.binary, err)
	}

	switch {
	case code == 0:
		if w.password {
			return Entry(strings.TrimRight(string(stdout), "\r\n")), nil
		}
		return Entry(strings.TrimSpace(string(stdout))), nil
	case code == exitCancel:
		return Cancel(), nil
	case code >= exitCustomKeyFirst && code <= exitCustomKeyLast:
		return CustomKey(code - exitCustomKeyFirst + 1), nil
	default:
		return Response{}, &ExitCodeError{Code: code, Stderr: strings.TrimSpace(string(stderr))}
	}
}
