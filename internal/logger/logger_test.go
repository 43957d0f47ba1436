package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureOutput funnels both the user stream and the logger's own output
// into one buffer for the duration of fn.
func captureOutput(fn func()) string {
	var buf bytes.Buffer

	formatter := NewSplitFormatter()
	formatter.UserOutput = &buf
	formatter.EnableColors = false
	if current, ok := log.Formatter.(*SplitFormatter); ok && current.JSONFormat {
		formatter.JSONFormat = true
	}
	log.SetFormatter(formatter)
	SetOutput(&buf)
	defer func() {
		log.SetFormatter(NewSplitFormatter())
		SetOutput(os.Stderr)
	}()

	fn()
	return buf.String()
}

func TestUserLogger_Prefixes(t *testing.T) {
	Setup(false, false, false)

	tests := []struct {
		name   string
		log    func()
		expect string
	}{
		{name: "info has no prefix", log: func() { User.Info("processing") }, expect: "processing"},
		{name: "success", log: func() { User.Success("done") }, expect: "[SUCCESS]"},
		{name: "starting", log: func() { User.Startingf("running %d tasks", 3) }, expect: "[STARTING] running 3 tasks"},
		{name: "skip", log: func() { User.Skip("not needed") }, expect: "[SKIPPED]"},
		{name: "warn", log: func() { User.Warn("careful") }, expect: "[WARN]"},
		{name: "error", log: func() { User.Errorf("failed: %s", "boom") }, expect: "[ERROR] failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(tt.log)
			assert.Contains(t, out, tt.expect)
		})
	}
}

func TestOpLogger_Fields(t *testing.T) {
	Setup(false, false, false)

	out := captureOutput(func() {
		Op.WithFields(map[string]interface{}{
			"task": "2026_01_01_000000_seed",
			"kind": "operation",
		}).Info("Task started")
	})

	assert.Contains(t, out, "Task started")
	assert.Contains(t, out, "task=2026_01_01_000000_seed")
	assert.Contains(t, out, "kind=operation")
}

func TestSetup_QuietSuppressesInfo(t *testing.T) {
	Setup(false, false, true)
	defer Setup(false, false, false)

	out := captureOutput(func() {
		User.Info("should be hidden")
		User.Error("should appear")
	})

	assert.NotContains(t, out, "should be hidden")
	assert.Contains(t, out, "should appear")
}

func TestSetup_VerboseEnablesDebug(t *testing.T) {
	Setup(true, false, false)
	defer Setup(false, false, false)

	out := captureOutput(func() {
		Op.Debug("low level detail")
	})
	assert.Contains(t, out, "low level detail")
}

func TestSetup_JSONFormat(t *testing.T) {
	Setup(false, true, false)
	defer Setup(false, false, false)

	out := captureOutput(func() {
		Op.WithField("task", "2026_01_01_000000_seed").Info("Task started")
	})

	assert.Contains(t, out, `"task":"2026_01_01_000000_seed"`)
	assert.Contains(t, out, `"msg":"Task started"`)
}
