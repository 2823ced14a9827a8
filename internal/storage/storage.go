package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// UploadStore writes incoming multipart uploads into the working directory
// under collision-free names so concurrent requests can never clobber each
// other's inputs.
type UploadStore struct {
	dir string
}

func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &UploadStore{dir: dir}, nil
}

func (s *UploadStore) Dir() string { return s.dir }

// SaveUpload streams the part to disk as <prefix>_<id><ext>, keeping the
// client's extension when it has one.
func (s *UploadStore) SaveUpload(file multipart.File, header *multipart.FileHeader, prefix, id, defaultExt string) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = defaultExt
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", prefix, id, ext))

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload to %s: %w", path, err)
	}
	return path, nil
}
