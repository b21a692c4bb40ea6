package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogErrorAddsErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	restore := SetForTest(New("debug", &buf))
	defer restore()

	LogError(context.Background(), errors.New("rpc down"), "tool failed", "tool", "get_balance")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tool failed", line["msg"])
	assert.Equal(t, "rpc down", line["error"])
	assert.Equal(t, "get_balance", line["tool"])
}

func TestLogErrorNilIsNoop(t *testing.T) {
	var buf bytes.Buffer
	restore := SetForTest(New("debug", &buf))
	defer restore()

	LogError(context.Background(), nil, "nothing")
	assert.Zero(t, buf.Len())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	restore := SetForTest(New("warn", &buf))
	defer restore()

	Info("hidden")
	Debug("hidden")
	assert.Zero(t, buf.Len())
	Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
