package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNew_JSONIncludesAppAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: "json", App: "deja", Out: &buf})

	log.Info().Msg("hidden")
	log.Warn().Str("patient_id", "p1").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "deja", entry["app"])
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "p1", entry["patient_id"])
	assert.Equal(t, "warn", entry["level"])
}
