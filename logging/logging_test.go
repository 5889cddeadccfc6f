package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "debug")

	log.Info().Str("patient_id", "p-1").Msg("classified")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "p-1", line["patient_id"])
	assert.Equal(t, "classified", line["message"])
	assert.Contains(t, line, "time")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "warn")

	log.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "loud")

	log.Debug().Msg("dropped")
	log.Info().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
