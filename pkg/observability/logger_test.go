package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("entity_id", "https://sp.example.com").Info("request validated")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request validated", entry["msg"])
	assert.Equal(t, "https://sp.example.com", entry["entity_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("filtered out")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"binding": "post",
		"count":   2,
	}).WithError(assert.AnError).Debug("fan-out")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "post", entry["binding"])
	assert.Equal(t, float64(2), entry["count"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}

func TestFromContextCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithEntityID(ctx, "https://sp.example.com")
	ctx = WithSessionID(ctx, "sess-9")

	FromContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "https://sp.example.com", entry["entity_id"])
	assert.Equal(t, "sess-9", entry["session_id"])
}

func TestGetLoggerDefault(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger, "missing logger falls back to a default")
}
