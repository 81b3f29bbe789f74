package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info().Str("key", "value").Msg("test message")

	var output map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &output)
	require.NoError(t, err, "logger output should be valid JSON")

	assert.Equal(t, "test message", output["message"])
	assert.Equal(t, "value", output["key"])
	assert.Equal(t, "info", output["level"])
	assert.Contains(t, output, "time", "should include timestamp")
}

func TestNew_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Debug().Msg("should not appear")
	assert.Empty(t, buf.String(), "debug messages should be filtered at info level")
}

func TestNew_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("error", &buf)

	log.Warn().Msg("should not appear")
	assert.Empty(t, buf.String())

	log.Error().Msg("error msg")
	assert.NotEmpty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestComponentAndTickFields(t *testing.T) {
	var buf bytes.Buffer
	log := ForTick(Component(NewWithWriter("debug", &buf), "settlement"), 12)

	log.Info().Msg("leg executed")

	var output map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "settlement", output["component"])
	assert.Equal(t, float64(12), output["tick"])
}

func TestNew_PrettyMode(t *testing.T) {
	// Just ensure it doesn't panic; pretty mode writes to stdout.
	log := New("info", true)
	log.Info().Msg("pretty mode test")
}
