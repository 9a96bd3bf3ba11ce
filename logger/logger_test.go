package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetDebug(false)
	})
	return buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestInfoWritesJSONLine(t *testing.T) {
	buf := capture(t)

	Info("published", FieldKV("topic", "eventsource"), FieldKV("partition", 3))

	line := decode(t, buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "published", line["msg"])
	assert.Equal(t, "eventsource", line["topic"])
	assert.EqualValues(t, 3, line["partition"])
	assert.NotEmpty(t, line["ts"])
}

func TestErrorCarriesErrorField(t *testing.T) {
	buf := capture(t)

	Error("send failed", errors.New("broker down"))

	line := decode(t, buf)
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "broker down", line["error"])
}

func TestDebugIsGated(t *testing.T) {
	buf := capture(t)

	SetDebug(false)
	Debug("hidden")
	assert.Zero(t, buf.Len())

	SetDebug(true)
	Debug("shown")
	assert.Equal(t, "shown", decode(t, buf)["msg"])
}
