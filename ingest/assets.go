package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	unknownSymbol = "UNKNOWN"
	maxSlugRunes  = 30
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// AssetFilename names the saved image of a post:
// <YYYYMMDD_HHMMSS>_<symbol or UNKNOWN>_<title slug>.png
func AssetFilename(observed time.Time, symbol, title string) string {
	if symbol == "" {
		symbol = unknownSymbol
	}
	slug := nonWordRe.ReplaceAllString(title, "_")
	if r := []rune(slug); len(r) > maxSlugRunes {
		slug = string(r[:maxSlugRunes])
	}
	return fmt.Sprintf("%s_%s_%s.png", observed.Format("20060102_150405"), symbol, slug)
}

// saveAsset writes data under dir without replacing an existing file; a
// numeric suffix is added when the name is taken.
func saveAsset(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < 100; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save asset: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("save asset: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("save asset: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("save asset: no free name for %s", name)
}

func removeAsset(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("remove asset failed", "path", path, "err", err)
	}
}
