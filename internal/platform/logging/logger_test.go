package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger, err := New(Config{
		Level:    "debug",
		Dir:      t.TempDir(),
		Filename: "test.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestNew_CreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: dir, Filename: "sentrycam.log"})
	require.NoError(t, err)
	defer logger.Close()

	_, err = os.Stat(filepath.Join(dir, "sentrycam.log"))
	assert.NoError(t, err)
}

func TestLogger_NilReceiverIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Info("no-op")
		logger.InfoTag("BOOT", "no-op")
		logger.Error("no-op %v", "arg")
	})
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		message string
		want    string
	}{
		{"plain message", "BOOT", "service started", "[BOOT] service started"},
		{"empty tag", "", "service started", "service started"},
		{"already tagged", "BOOT", "[HTTP] route registered", "[HTTP] route registered"},
		{"whitespace trimmed", " NOTIFY ", " sent ", "[NOTIFY] sent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLog(tt.tag, tt.message))
		})
	}
}

func TestLogger_FormatAndStructuredModes(t *testing.T) {
	logger := newTestLogger(t)

	assert.NotPanics(t, func() {
		logger.Info("captured frame %dx%d", 1920, 1080)
		logger.Info("captured frame", map[string]interface{}{"width": 1920, "height": 1080})
		logger.WarnTag("PIPELINE", "frame dropped, %d tasks in flight", 5)
	})
}
