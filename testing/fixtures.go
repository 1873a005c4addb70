// Package testing holds small fixture helpers shared across the engine's
// test suites, the way the teacher's own "testing" package holds helpers
// (there, CreateRandomImage/LoadDiskImage) shared across its driver tests.
package testing

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// RandomContent returns n random bytes, for exercising multi-block payloads
// without hand-writing large literals in test files. It is guaranteed to
// either return a slice of exactly n bytes or fail the test and abort.
func RandomContent(t *testing.T, n int) []byte {
	t.Helper()
	content := make([]byte, n)
	_, err := rand.Read(content)
	require.NoErrorf(t, err, "failed to generate %d random bytes", n)
	return content
}
