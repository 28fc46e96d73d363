package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.Info().Msg("dropped")
	log.Warn().Str("document_id", "doc_1").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "doc_1", entry["document_id"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Format: "console", Writer: &buf})
	require.NoError(t, err)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.log")
	log, closeFn, err := New(Options{Path: path})
	require.NoError(t, err)
	log.Info().Msg("to file")
	require.NoError(t, closeFn())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}
