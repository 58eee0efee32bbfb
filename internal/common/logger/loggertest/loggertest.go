// internal/common/logger/loggertest/loggertest.go
//
// Test-only logger constructors. Kept out of package logger so the worker
// binary does not link against the testing framework.
package loggertest

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"assistant-workers/internal/common/logger"
)

// New returns a Logger that writes through t.Log.
func New(t testing.TB) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}
