package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(Config{Level: "debug", Format: "json"}, &buf), "aggregator")

	logger.Debug().Int("groups", 3).Msg("aggregation finished")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["component"] != "aggregator" {
		t.Fatalf("component field missing: %#v", entry)
	}
	if entry["groups"] != float64(3) {
		t.Fatalf("groups field missing: %#v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("timestamp missing: %#v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn"}, &buf)

	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %q", buf.String())
	}

	logger.Warn().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn must be written, got %q", buf.String())
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "chatty"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
