package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormat_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Info("frame received", KeyPath, "a/b", KeyMethod, "chng")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "frame received", record["msg"])
	assert.Equal(t, "a/b", record[KeyPath])
	assert.Equal(t, "chng", record[KeyMethod])
}

func TestTextFormat_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Debug("hidden debug")
	Info("hidden info")
	Warn("visible warning", KeyCount, 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden debug")
	assert.NotContains(t, out, "hidden info")
	assert.Contains(t, out, "visible warning")
	assert.Contains(t, out, "count=3")
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("bogus")
	Info("still logged")
	assert.True(t, strings.Contains(buf.String(), "still logged"))
}
