package export

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var sample = []Card{
	{UID: "1", Front: "<b> & </b>", Back: "• one\n• two", Images: []string{"cGVydQ==.png"}},
	{UID: "2", Front: "Q", Back: "A", Images: []string{}},
}

func TestSaveLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cards_retrieved.json")
	if err := Save(path, sample); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, `"front": "<b> & </b>"`) {
		t.Fatalf("HTML escaped or not indented:\n%s", text)
	}
	if !strings.Contains(text, `"images": []`) {
		t.Fatalf("empty images not written as []:\n%s", text)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(got, sample) {
		t.Fatalf("Load = %#v, want %#v", got, sample)
	}
}

func TestSaveLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.yaml")
	if err := Save(path, sample); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "uid: \"1\"") {
		t.Fatalf("not YAML:\n%s", raw)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(got, sample) {
		t.Fatalf("Load = %#v, want %#v", got, sample)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load missing error = %v", err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("Load returned nil error for invalid JSON")
	}
}

func TestCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	calls := 0
	fetch := func() ([]Card, error) {
		calls++
		return sample, nil
	}

	if _, err := Cached(path, false, fetch); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if _, err := Cached(path, false, fetch); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
	if _, err := Cached(path, true, fetch); err != nil {
		t.Fatalf("Cached returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("refresh did not refetch")
	}
}

func TestCached_EmptyBatchNotStored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	cards, err := Cached(path, false, func() ([]Card, error) { return []Card{}, nil })
	if err != nil || len(cards) != 0 {
		t.Fatalf("Cached = %v, %v", cards, err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty batch was written: %v", err)
	}
}
