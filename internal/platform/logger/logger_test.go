package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsGoToTheirWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(&out, &errOut)

	l.Info("hello")
	l.Warnf("slow tick: %dms", 120)
	l.Errorf("boom: %v", "disk full")
	l.Event("NIGHT_SKIPPED", "world", "reason=quorum")

	assert.Contains(t, out.String(), "[SLEEPPLUS-INFO] ")
	assert.Contains(t, out.String(), "hello")
	assert.Contains(t, out.String(), "[SLEEPPLUS-WARN] ")
	assert.Contains(t, out.String(), "slow tick: 120ms")
	assert.Contains(t, out.String(), "[EVENT:NIGHT_SKIPPED] Actor:world | reason=quorum")
	assert.NotContains(t, out.String(), "boom")
	assert.Contains(t, errOut.String(), "[SLEEPPLUS-ERROR] ")
	assert.Contains(t, errOut.String(), "boom: disk full")
	assert.Contains(t, out.String(), "logger_test.go", "call site is the caller, not the wrapper")
}
