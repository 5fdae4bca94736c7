package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestJSONFormatCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "worker", "info", "json")
	log.Debug("hidden")
	log.Info("track exported", slog.String("file", "Paris.gpx"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "worker", rec["service"])
	require.Equal(t, "track exported", rec["msg"])
	require.Equal(t, "Paris.gpx", rec["file"])
}

func TestTextFormatByDefault(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter(&buf, "api", "", "").Info("ready")
	require.Contains(t, buf.String(), "service=api")
}
