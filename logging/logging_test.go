package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.Level(1000), ParseLogLevel("silent"))
	assert.Equal(t, slog.Level(1000), ParseLogLevel("none"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("unknown"))
}

func TestLogLevelFlag(t *testing.T) {
	flag := &logLevelFlag{value: "silent"}
	assert.False(t, flag.IsSet())

	require.NoError(t, flag.Set("debug"))
	assert.True(t, flag.IsSet())
	assert.Equal(t, "debug", flag.String())

	err := flag.Set("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value")
}
