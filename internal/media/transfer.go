package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMinDimension is the size below which an image is considered
// decorative. An image is kept when either side reaches it.
const DefaultMinDimension = 150

// Source provides raw media bytes by their name in the host's media store.
type Source interface {
	RetrieveMediaFile(ctx context.Context, name string) ([]byte, error)
}

// Transfer copies referenced media into Dir.
type Transfer struct {
	Dir          string
	Source       Source
	MinDimension int
	Logger       *slog.Logger
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// IsImage reports whether name has a raster image extension. Vector images
// and audio are not checked for size.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Fetch transfers names and returns the encoded local file names that made
// it into Dir, in input order. Files that fail to transfer, undersized
// images and images whose size cannot be read are logged and left out.
func (t *Transfer) Fetch(ctx context.Context, names []string) []string {
	logger := t.logger()
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		logger.Warn("create media dir failed", "dir", t.Dir, "error", err)
		return nil
	}

	kept := make([]string, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return kept
		}
		local, err := t.fetchOne(ctx, name)
		if err != nil {
			logger.Warn("media transfer skipped", "name", name, "error", err)
			continue
		}
		if local == "" {
			continue
		}
		kept = append(kept, local)
	}
	return kept
}

func (t *Transfer) fetchOne(ctx context.Context, name string) (string, error) {
	if t.Source == nil {
		return "", errors.New("no media source configured")
	}
	data, err := t.Source.RetrieveMediaFile(ctx, name)
	if err != nil {
		return "", err
	}

	local := EncodeName(name)
	path := filepath.Join(t.Dir, local)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", local, err)
	}

	if !IsImage(name) {
		return local, nil
	}
	width, height, err := Dimensions(data)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("check image size: %w", err)
	}
	minDim := t.MinDimension
	if minDim <= 0 {
		minDim = DefaultMinDimension
	}
	if width < minDim && height < minDim {
		t.logger().Info("skipping small image", "name", name, "width", width, "height", height)
		_ = os.Remove(path)
		return "", nil
	}
	return local, nil
}

// Dimensions decodes only the image header of data.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// CleanDir removes every entry inside dir, keeping dir itself. A missing dir
// is not an error.
func CleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read media dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Transfer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
