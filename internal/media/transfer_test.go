package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type mapSource map[string][]byte

func (m mapSource) RetrieveMediaFile(_ context.Context, name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestTransfer_FetchFiltersAndEncodes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	src := mapSource{
		"big.png":    pngBytes(t, 400, 20),
		"tiny.png":   pngBytes(t, 16, 16),
		"broken.jpg": []byte("not an image"),
		"clip.mp3":   []byte("ID3"),
		"shape.svg":  []byte("<svg/>"),
	}
	tr := &Transfer{
		Dir:    dir,
		Source: src,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	got := tr.Fetch(context.Background(), []string{"big.png", "tiny.png", "missing.png", "broken.jpg", "clip.mp3", "shape.svg"})
	want := []string{EncodeName("big.png"), EncodeName("clip.mp3"), EncodeName("shape.svg")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Fetch = %#v, want %#v", got, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("media dir has %d entries, want %d (dropped files must be removed)", len(entries), len(want))
	}
}

func TestTransfer_CustomMinDimension(t *testing.T) {
	tr := &Transfer{
		Dir:          t.TempDir(),
		Source:       mapSource{"small.png": pngBytes(t, 40, 40)},
		MinDimension: 32,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if got := tr.Fetch(context.Background(), []string{"small.png"}); len(got) != 1 {
		t.Fatalf("Fetch = %#v, want small.png kept with MinDimension=32", got)
	}
}

func TestCleanDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub", "deeper"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := CleanDir(dir); err != nil {
		t.Fatalf("CleanDir returned error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("CleanDir left %d entries", len(entries))
	}
	if err := CleanDir(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("CleanDir on missing dir returned error: %v", err)
	}
}
