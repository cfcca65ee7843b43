package testing

import (
	"testing"

	"github.com/arloliu/opcsub/internal/logging"
)

// NewTestLogger creates a logger that records every entry and mirrors it to t.Logf.
//
// The returned recorder can be queried with Entries and Find to assert on
// diagnostics emitted by the code under test.
func NewTestLogger(t *testing.T) *logging.Recorder {
	t.Helper()

	return logging.NewRecorder(t.Logf)
}
