package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/heritage-repo/internal/infrastructure/cache"
)

// PreviewStorage writes inline preview images to disk, deduplicated by
// content checksum.
type PreviewStorage struct {
	dir       string
	publicURL string
	checksums *cache.Cache
}

func NewPreviewStorage(dir, publicURL string, checksums *cache.Cache) *PreviewStorage {
	return &PreviewStorage{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		checksums: checksums,
	}
}

var previewExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// IsInline reports whether preview is an embedded data URL rather than a link.
func IsInline(preview string) bool {
	return strings.HasPrefix(preview, "data:image/")
}

// Persist stores an inline data URL and returns its public path. Anything
// that is not inline is returned unchanged.
func (s *PreviewStorage) Persist(ctx context.Context, preview string) (string, error) {
	if !IsInline(preview) {
		return preview, nil
	}

	header, payload, ok := strings.Cut(preview, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", errors.New("malformed preview data url")
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	ext, ok := previewExtensions[mime]
	if !ok {
		return "", fmt.Errorf("unsupported preview type %s", mime)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.Wrap(err, "decode preview")
	}

	checksum := fmt.Sprintf("%016x", xxh3.Hash(raw))

	var known string
	if s.checksums.Get(ctx, checksum, &known) {
		if _, err := os.Stat(filepath.Join(s.dir, filepath.Base(known))); err == nil {
			return known, nil
		}
	}

	name := checksum + "." + ext
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create preview directory")
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return "", errors.Wrap(err, "write preview")
	}

	url := s.publicURL + "/" + name
	s.checksums.Set(ctx, checksum, url, 0)

	slog.DebugContext(ctx, "preview stored",
		slog.String("checksum", checksum),
		slog.String("module", "preview"),
	)

	return url, nil
}
