package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cranky.log")
	logger, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("export started", "deck", "Geo")
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `msg="export started"`) || !strings.Contains(text, "deck=Geo") {
		t.Fatalf("log file = %q", text)
	}
	if strings.Contains(text, "hidden") {
		t.Fatalf("debug record written at info level: %q", text)
	}
}

func TestNew_VerboseMirrorsToStderr(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "cranky.log")
	logger, err := New(Options{Path: path, Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer logger.Close()

	logger.Debug("polling", "attempt", 3)
	if !strings.Contains(stderr.String(), "attempt=3") {
		t.Fatalf("stderr = %q, want debug record", stderr.String())
	}
}

func TestNew_NoOutputs(t *testing.T) {
	logger, err := New(Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("dropped")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
