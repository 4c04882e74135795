package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()
	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}
	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("debug level shows everything", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")
		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})

	t.Run("info level filters debug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		Debug("should not appear")
		Info("should appear")

		out := buf.String()
		assert.NotContains(t, out, "should not appear")
		assert.Contains(t, out, "should appear")
	})
}

func TestFormatJSON(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	defer SetFormat("text")

	Info("store created", StoreName("default"), FileID("abc-123"))

	var decoded map[string]any
	line := strings.TrimSpace(buf.String())
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "store created", decoded["msg"])
	assert.Equal(t, "default", decoded[KeyStoreName])
	assert.Equal(t, "abc-123", decoded[KeyFileID])
}

func TestContextFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	lc := NewLogContext("create", "default").WithFileID("abc-123").WithRequestID("req-1")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "created file")

	out := buf.String()
	assert.Contains(t, out, "store_name=default")
	assert.Contains(t, out, "operation=create")
	assert.Contains(t, out, "file_id=abc-123")
	assert.Contains(t, out, "request_id=req-1")
}

func TestFromContextNil(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
}
