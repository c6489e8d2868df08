package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNewLogrJSON(t *testing.T) {
	t.Setenv(FormatEnv, "json")

	var buf bytes.Buffer
	l := NewLogr(&buf, false)
	l.Info("plan built", "records", 4)
	l.V(1).Info("hidden")

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "plan built", entry["message"])
	assert.Equal(t, 4.0, entry["records"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewLogrVerbose(t *testing.T) {
	t.Setenv(FormatEnv, "json")

	var buf bytes.Buffer
	NewLogr(&buf, true).V(1).Info("evaluate begin")
	assert.Contains(t, buf.String(), "evaluate begin")
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestNewConsole(t *testing.T) {
	t.Setenv(FormatEnv, "")

	var buf bytes.Buffer
	New(&buf, false).Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "{")
}
