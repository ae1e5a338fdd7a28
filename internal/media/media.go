// Package media finds the files a note references and copies them into the
// export's working directory.
package media

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	srcPattern   = regexp.MustCompile(`(?i)\bsrc\s*=\s*(?:"([^"]+)"|'([^']+)')`)
	soundPattern = regexp.MustCompile(`\[sound:([^\]]+)\]`)
)

// ExtractNames returns the media file names referenced by markup, in order
// of first appearance. Remote URLs and data URIs are skipped.
func ExtractNames(markup string) []string {
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, m := range srcPattern.FindAllStringSubmatchIndex(markup, -1) {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		hits = append(hits, hit{pos: m[0], name: markup[start:end]})
	}
	for _, m := range soundPattern.FindAllStringSubmatchIndex(markup, -1) {
		hits = append(hits, hit{pos: m[0], name: markup[m[2]:m[3]]})
	}
	// Two short lists; insertion sort keeps document order stable.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	seen := make(map[string]bool, len(hits))
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		name := strings.TrimSpace(h.name)
		if name == "" || isRemote(name) || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func isRemote(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "data:") || strings.Contains(lower, "://")
}

// EncodeName maps a media file name to a filesystem-safe name: the base name
// is URL-safe base64 encoded and the extension is kept as is.
func EncodeName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base64.URLEncoding.EncodeToString([]byte(base)) + ext
}

// DecodeName reverses EncodeName.
func DecodeName(encoded string) (string, error) {
	ext := filepath.Ext(encoded)
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSuffix(encoded, ext))
	if err != nil {
		return "", fmt.Errorf("decode media name %q: %w", encoded, err)
	}
	return string(raw) + ext, nil
}
