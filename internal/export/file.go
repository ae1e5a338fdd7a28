package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Save writes cards to path. Paths ending in .yaml or .yml are written as
// YAML, everything else as indented JSON.
func Save(path string, cards []Card) error {
	if cards == nil {
		cards = []Card{}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cards)
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(cards)
		data = buf.Bytes()
	}
	if err != nil {
		return fmt.Errorf("encode cards: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cards-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cards: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cards: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Load reads cards written by Save.
func Load(path string) ([]Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cards []Card
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cards)
	} else {
		err = json.Unmarshal(data, &cards)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	for i := range cards {
		if cards[i].Images == nil {
			cards[i].Images = []string{}
		}
	}
	return cards, nil
}

// Cached returns the batch stored at path unless refresh is set or the file
// is missing, in which case it calls fetch and stores a non-empty result.
func Cached(path string, refresh bool, fetch func() ([]Card, error)) ([]Card, error) {
	if !refresh {
		cards, err := Load(path)
		if err == nil {
			return cards, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	cards, err := fetch()
	if err != nil {
		return cards, err
	}
	if len(cards) > 0 {
		if err := Save(path, cards); err != nil {
			return cards, err
		}
	}
	return cards, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
