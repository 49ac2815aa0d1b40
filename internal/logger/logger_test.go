package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, level string, log func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetTestOutput(&buf)
	defer UnsetTestOutput()
	InitLogger(level)
	defer InitLogger("info")

	log()
	return buf.String()
}

func TestInfoWithFields(t *testing.T) {
	out := capture(t, "info", func() {
		Info("parsed observation table", Fields{"points": 2})
	})
	assert.Contains(t, out, "parsed observation table")
	assert.Contains(t, out, "points=2")
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	out := capture(t, "info", func() {
		Debug("noisy detail")
	})
	assert.Empty(t, out)
}

func TestDebugShownAtDebugLevel(t *testing.T) {
	out := capture(t, "debug", func() {
		Debugf("request to %s", "somewhere")
	})
	assert.Contains(t, out, "request to somewhere")
}

func TestSuccessCarriesStatusField(t *testing.T) {
	out := capture(t, "info", func() {
		Success("downloaded", Fields{"file": "a.ZIP"})
	})
	assert.Contains(t, out, "status=success")
	assert.Contains(t, out, "file=a.ZIP")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	out := capture(t, "nonsense", func() {
		Warnf("heads up")
	})
	assert.Contains(t, out, "heads up")
}
