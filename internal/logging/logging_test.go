package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/stockfeed/internal/config"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "symbol", "AAPL")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "symbol=AAPL") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()

	logger.Debug("refreshed", "stocks", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "refreshed" || record["level"] != "DEBUG" {
		t.Errorf("record = %v", record)
	}
	if record["stocks"] != float64(3) {
		t.Errorf("stocks = %v, want 3", record["stocks"])
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockfeed.log")

	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("to both")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to both") {
		t.Errorf("log file = %q, want record", data)
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("stdout = %q, want record", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	var buf bytes.Buffer
	if _, _, err := New(config.LogConfig{Level: "loud"}, &buf); err == nil {
		t.Error("New() expected error for bad level")
	}
	if _, _, err := New(config.LogConfig{Level: "info", Format: "xml"}, &buf); err == nil {
		t.Error("New() expected error for bad format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
