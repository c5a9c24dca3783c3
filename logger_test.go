package main

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLoggerLevels(t *testing.T) {
	testCases := []struct {
		debug        bool
		debugEnabled bool
	}{
		{false, false},
		{true, true},
	}

	for _, tc := range testCases {
		log, err := newLogger(tc.debug)
		if err != nil {
			t.Fatalf("newLogger(%v) failed: %v", tc.debug, err)
		}
		if got := log.Core().Enabled(zap.DebugLevel); got != tc.debugEnabled {
			t.Errorf("newLogger(%v): debug enabled = %v", tc.debug, got)
		}
		if !log.Core().Enabled(zap.WarnLevel) {
			t.Errorf("newLogger(%v): warnings disabled", tc.debug)
		}
	}
}
