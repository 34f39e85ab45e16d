package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that secret does not appear in output and
// that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secret string) {
	t.Helper()

	assert.NotContains(t, output, secret,
		"secret %q should be redacted, but appears in output", secret)
	assert.Contains(t, output, "[REDACTED]",
		"expected [REDACTED] marker where a secret was used")
}

// AssertNoSecretLeak verifies that none of secrets appear in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, output, secret, "secret leaked into output")
	}
}
