package testutils

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
	Hook   *test.Hook
}

// NewTestHelper creates a test helper whose logger records entries instead of printing them.
func NewTestHelper(t *testing.T) *TestHelper {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
		Hook:   hook,
	}
}

// Logged reports whether any recorded entry contains text in its message or fields.
func (h *TestHelper) Logged(text string) bool {
	for _, e := range h.Hook.AllEntries() {
		line, err := e.String()
		if err == nil && strings.Contains(line, text) {
			return true
		}
	}
	return false
}
