package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, true},
		{"debug", zerolog.DebugLevel, true},
		{"WARN", zerolog.WarnLevel, true},
		{"loud", zerolog.NoLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if got != tt.want || (err == nil) != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.name, got, err)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, Config{Level: "info", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug().Msg("hidden")
	log.Info().Uint32("freq_hz", 868100000).Msg("tuned")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["message"] != "tuned" || entry["freq_hz"] != float64(868100000) {
		t.Errorf("entry = %v", entry)
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, Config{Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug().Msg("programming PLL")
	if !strings.Contains(buf.String(), "programming PLL") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestBadFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, Config{Format: "xml"}); err == nil {
		t.Error("xml format accepted")
	}
}
