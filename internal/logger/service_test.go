package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelInfo, "").With("name", "record_store").Info("saved", "chain", "local")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "saved", line["msg"])
		assert.Equal(t, "record_store", line["name"])
		assert.Equal(t, "local", line["chain"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelInfo, FormatText).Info("saved")
		assert.Contains(t, buf.String(), "msg=saved")
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelWarn, FormatJSON).Info("hidden")
		assert.Empty(t, buf.String())
	})
}
