package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("manager", "demo").Msg("visible")

	out := strings.TrimSpace(buf.String())
	require.NotContains(t, out, "hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	require.Equal(t, "visible", line["message"])
	require.Equal(t, "demo", line["manager"])
	require.Equal(t, "info", line["level"])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	require.Error(t, err)
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.InfoLevel)
	slogger := NewSlogLogger(zl)

	slogger.Debug("dropped")
	require.Empty(t, buf.String())

	slogger.With("supervisor", "root").
		WithGroup("event").
		Warn("service failed", "service", "worker", "restarts", 3, "err", errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "service failed", line["message"])
	require.Equal(t, "root", line["supervisor"])
	require.Equal(t, "worker", line["event.service"])
	require.EqualValues(t, 3, line["event.restarts"])
	require.Equal(t, "boom", line["event.err"])
	require.NotContains(t, line, "event.supervisor")
}

func TestSlogHandlerAttrsKeepTheirGroups(t *testing.T) {
	var buf bytes.Buffer
	slogger := NewSlogLogger(zerolog.New(&buf))

	slogger.WithGroup("tree").
		With("supervisor", "root").
		WithGroup("event").
		With("service", "worker").
		Info("restart", "k", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "root", line["tree.supervisor"])
	require.Equal(t, "worker", line["tree.event.service"])
	require.EqualValues(t, 1, line["tree.event.k"])
	require.NotContains(t, line, "tree.event.supervisor")
}

func TestSlogHandlerEnabled(t *testing.T) {
	h := NewSlogHandler(zerolog.New(nil).Level(zerolog.WarnLevel))
	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
