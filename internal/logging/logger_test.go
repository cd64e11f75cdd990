package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/kamusis/upksearch/internal/metrics"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", "text"} {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			logger, err := NewLogger(Config{Format: format, Level: level, Output: zapcore.AddSync(&bytes.Buffer{})})
			require.NoError(t, err, "format=%s level=%s", format, level)
			logger.Info("heartbeat")
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(Config{Format: "json", Level: "loud"})
	require.Error(t, err)
}

func TestNewLogger_JSONFieldsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "json", Level: "info", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.LogEntriesTotal.WithLabelValues("warn"))
	logger.Warn("index stale")
	logger.Debug("filtered out")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "index stale", entry["msg"])
	require.Contains(t, entry, "timestamp")

	after := testutil.ToFloat64(metrics.LogEntriesTotal.WithLabelValues("warn"))
	require.Equal(t, before+1, after)
}
