package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/secretmenu/internal/logging"
)

// LogCapture records everything written through its Logger so tests can
// check what reached the log, in particular that secrets did not.
//
//	logs := testutil.NewLogCapture(t, true)
//	doSomething(logs.Logger)
//	logs.AssertRedacted(t, "hunter2")
type LogCapture struct {
	Logger *logging.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogCapture returns a capture whose logger emits uncoloured lines.
func NewLogCapture(t *testing.T, debug bool) *LogCapture {
	t.Helper()

	c := &LogCapture{}
	c.Logger = logging.NewWithWriter(c, debug, true)
	return c
}

// Write implements io.Writer for the underlying logger.
func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Output returns everything logged so far.
func (c *LogCapture) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Lines returns the non-blank logged lines.
func (c *LogCapture) Lines() []string {
	var lines []string
	for _, line := range strings.Split(c.Output(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// AssertContains checks that substr was logged.
func (c *LogCapture) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, c.Output(), substr, "expected log output to contain %q", substr)
}

// AssertRedacted checks that secret never reached the log while a redaction
// marker did.
func (c *LogCapture) AssertRedacted(t *testing.T, secret string) {
	t.Helper()
	AssertSecretRedacted(t, c.Output(), secret)
}
