package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{" warn ", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"bogus", log.InfoLevel},
		{"", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestConfigure_LevelPrecedence(t *testing.T) {
	t.Setenv("SALES_AGENT_LOG_LEVEL", "error")

	require.NoError(t, Configure("", "", false))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())

	require.NoError(t, Configure("debug", "", false))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())
}

func TestConfigure_TestModeForcesInfo(t *testing.T) {
	require.NoError(t, Configure("debug", "", true))
	assert.Equal(t, log.InfoLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	require.NoError(t, Configure("info", path, false))

	Info("written to file", "turn", 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	require.NoError(t, Configure("info", "", false))
}

func TestNewStyledLogger_InheritsLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("warn", "", false))
	SetOutput(&buf)

	component := NewStyledLogger("Dispatcher")
	assert.Equal(t, log.WarnLevel, component.GetLevel())

	component.Warn("tool failed", "tool", "search_pricing_models")
	assert.Contains(t, buf.String(), "Dispatcher")
	assert.Contains(t, buf.String(), "tool failed")

	SetOutput(os.Stderr)
}
