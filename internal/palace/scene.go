package palace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoLayout is returned by LoadScene when no layout file exists.
var ErrNoLayout = errors.New("layout file not found")

// SaveScene writes the layout, indented, to path. The session id is added
// to the layout when the service left it out.
func SaveScene(path string, s Scene) error {
	layout := s.Layout
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(layout, &fields); err == nil && s.SessionID != "" {
		if _, ok := fields["session_id"]; !ok {
			fields["session_id"], _ = json.Marshal(s.SessionID)
			if layout, err = json.Marshal(fields); err != nil {
				return fmt.Errorf("encode layout: %w", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, layout, "", "  "); err != nil {
		return fmt.Errorf("indent layout: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create layout dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}

// LoadScene reads a layout written by SaveScene. The session id comes from
// the layout's session_id field.
func LoadScene(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Scene{}, ErrNoLayout
		}
		return Scene{}, fmt.Errorf("read layout: %w", err)
	}
	var head struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Scene{}, fmt.Errorf("parse layout: %w", err)
	}
	if head.SessionID == "" {
		return Scene{}, fmt.Errorf("parse layout: no session_id")
	}
	return Scene{SessionID: head.SessionID, Layout: json.RawMessage(data)}, nil
}
