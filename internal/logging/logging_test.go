package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"Debug":   slog.LevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("playback started", "run_id", "abc")

	out := buf.String()
	if !strings.Contains(out, "playback started") || !strings.Contains(out, "run_id=abc") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(slog.LevelInfo, "json", &buf)

	logger.Info("playback started", "run_id", "abc")

	out := buf.String()
	if !strings.Contains(out, `"msg":"playback started"`) || !strings.Contains(out, `"run_id":"abc"`) {
		t.Errorf("unexpected json output: %s", out)
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(slog.LevelWarn, "text", &buf)

	logger.Debug("event dispatched")
	logger.Warn("slow client dropped")

	out := buf.String()
	if strings.Contains(out, "event dispatched") {
		t.Errorf("debug message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "slow client dropped") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"", "text", "JSON"} {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	if ValidFormat("xml") {
		t.Errorf("ValidFormat(xml) = true")
	}
}
