package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "WARN", Format: FormatJSON}, &buf)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l.Info().Msg("dropped")
	l.Warn().Str("component", "hero").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "hero", entry["component"])
	assert.Equal(t, "kept", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_ConsoleDefault(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{}, &buf)
	require.NoError(t, err)

	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not JSON")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(Config{Format: "xml"}, nil)
	assert.ErrorContains(t, err, "invalid log format")
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storymig.log")
	var buf bytes.Buffer

	l, err := New(Config{Level: "debug", File: path}, &buf)
	require.NoError(t, err)
	l.Debug().Msg("to file")
	require.NoError(t, l.Close())

	assert.Empty(t, buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry), "file sink writes JSON lines")
	assert.Equal(t, "to file", entry["message"])
}

func TestLogger_CloseNil(t *testing.T) {
	var l *Logger
	assert.NoError(t, l.Close())
}
