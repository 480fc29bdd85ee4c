package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{Component: "download", CharacterType: "quokka", Phase: "infant"}, &buf, zapcore.DebugLevel)

	l.Info("session started", map[string]any{"total_frames": 615})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["message"] != "session started" {
		t.Errorf("message = %v", e["message"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v, want info", e["level"])
	}
	if e["component"] != "download" || e["character_type"] != "quokka" || e["phase"] != "infant" {
		t.Errorf("context fields missing: %v", e)
	}
	if _, ok := e["session_id"]; ok {
		t.Error("empty session_id should be omitted")
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["total_frames"] != float64(615) {
		t.Errorf("fields = %v", e["fields"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{Component: "download"}, &buf, zapcore.DebugLevel)

	l.With(Context{SessionID: "s-1"}).Warn("frame failed", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0]["session_id"] != "s-1" || entries[0]["component"] != "download" {
		t.Errorf("unexpected entry: %v", entries[0])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{}, &buf, ParseLevel("warn"))

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Error("shown", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "shown" {
		t.Errorf("entries = %v, want only the error", entries)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded", map[string]any{"k": "v"})
	l.Sugar().Infof("discarded %d", 1)
}
