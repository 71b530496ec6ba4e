package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"":        zerolog.InfoLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
	}

	for name, want := range tests {
		got, err := logger.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseLevelInvalid(t *testing.T) {
	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf)

	err := errors.New().WithMessage(errors.ErrSourceRead, "no battery")
	log.ErrorWithCode(err).Msg("poll failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "source_read_failed", entry["error_code"])
	assert.Equal(t, "poll failed", entry["message"])
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, logger.SetLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	err := logger.SetLevel("loud")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel(), "invalid level leaves the level unchanged")
}

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger.New(&buf).Info().Str("source", "battery").Msg("recovered")
	assert.Contains(t, buf.String(), `"source":"battery"`)

	assert.NotPanics(t, func() {
		logger.Nop().Warn().Msg("dropped")
		logger.Component("monitor").Debug().Msg("quiet")
	})
}
