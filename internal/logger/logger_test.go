package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("info", "json", &buf)
	require.NoError(t, err)

	log.Named("company_service").Info("company created", zap.String("id", "abc"))
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "company created", entry["msg"])
	assert.Equal(t, "company_service", entry["logger"])
	assert.Equal(t, "abc", entry["id"])
	assert.Contains(t, entry, "ts")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("DEBUG", "console", &buf)
	require.NoError(t, err)

	log.Debug("visible")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
