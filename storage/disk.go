package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DiskBlobStore persists uploaded file bytes under a single directory and
// hands back the generated filename as the stable reference stored on the
// message record. The directory is also served as static content.
type DiskBlobStore struct {
	dir string
	log *slog.Logger
}

func NewDiskBlobStore(dir string, log *slog.Logger) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &DiskBlobStore{dir: dir, log: log}, nil
}

// Store writes the bytes to disk and returns the generated filename. The
// extension comes from the hint (the client-supplied name) when present,
// otherwise it is sniffed from the content.
func (s *DiskBlobStore) Store(data []byte, extHint string) (string, error) {
	ext := strings.TrimPrefix(extHint, ".")
	if ext == "" {
		ext = strings.TrimPrefix(mimetype.Detect(data).Extension(), ".")
	}

	// Timestamp first so the directory lists chronologically; the uuid tail
	// disconnects collisions within the same nanosecond.
	name := fmt.Sprintf("%d-%s.%s", time.Now().UnixNano(), uuid.New().String()[:8], ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}

	s.log.Debug("Blob stored", "name", name, "size", len(data))
	return name, nil
}

// Dir returns the directory blobs are written to.
func (s *DiskBlobStore) Dir() string {
	return s.dir
}
