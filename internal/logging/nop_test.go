package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	require.NotPanics(t, func() {
		logger.Debug("debug", "k", "v")
		logger.Info("info")
		logger.Warn("warn", "odd")
		logger.Error("error", nil, nil)
		logger.Fatal("fatal")
	})
}

func TestOrNop(t *testing.T) {
	require.IsType(t, &NopLogger{}, OrNop(nil))

	rec := NewRecorder(nil)
	require.Same(t, rec, OrNop(rec))
}
