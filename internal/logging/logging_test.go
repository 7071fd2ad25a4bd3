package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetVerbosityClampsAndMapsLevels(t *testing.T) {
	defer SetVerbosity(0)

	tests := []struct {
		count     int
		wantLevel string
		wantCount int
	}{
		{-3, "warn", 0},
		{0, "warn", 0},
		{1, "info", 1},
		{2, "debug", 2},
		{3, "trace", 3},
		{9, "trace", 4},
	}
	for _, tt := range tests {
		SetVerbosity(tt.count)
		if LevelName() != tt.wantLevel || Verbosity() != tt.wantCount {
			t.Errorf("SetVerbosity(%d): level=%s count=%d, want %s/%d",
				tt.count, LevelName(), Verbosity(), tt.wantLevel, tt.wantCount)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in        string
		wantLevel Level
		wantCount int
	}{
		{"error", LevelError, 0},
		{"WARNING", LevelWarn, 0},
		{"info", LevelInfo, 1},
		{" debug ", LevelDebug, 2},
		{"trace", LevelTrace, 4},
	}
	for _, tt := range tests {
		lvl, count, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tt.in, err)
		}
		if lvl != tt.wantLevel || count != tt.wantCount {
			t.Errorf("ParseLevel(%q) = %v/%d, want %v/%d", tt.in, lvl, count, tt.wantLevel, tt.wantCount)
		}
	}
	if _, _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetVerbosity(0)

	SetVerbosity(0)
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Fatalf("warn line missing: %s", out)
	}

	buf.Reset()
	SetVerbosity(2)
	Debugf("debug line")
	Tracef("trace line")
	out = buf.String()
	if !strings.Contains(out, "debug line") || strings.Contains(out, "trace line") {
		t.Fatalf("unexpected debug-level output: %s", out)
	}
}

func TestAddFileDuplicatesOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "logs", "mastervol.log")
	closer, err := AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	Errorf("disk full")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "disk full") || !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("expected line in both sinks; file=%q console=%q", data, buf.String())
	}
}
