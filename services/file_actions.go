package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrFileExists      = errors.New("file already exists")
	ErrFileNotFound    = errors.New("file not found")
)

// DocumentFiles manages the PDF files inside the data directory.
type DocumentFiles struct {
	Dir string // The data directory the index is built from
}

func NewDocumentFiles(dir string) (*DocumentFiles, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory %s: %w", dir, err)
	}
	return &DocumentFiles{Dir: dir}, nil
}

// sanitizeFilename ensures the filename is a plain PDF name inside Dir.
func (d *DocumentFiles) sanitizeFilename(filename string) (string, error) {
	base := filepath.Base(filename)
	if base != filename || base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if !IsPDF(base) {
		return "", fmt.Errorf("%w: %q must end with .pdf", ErrInvalidFilename, filename)
	}
	return filepath.Join(d.Dir, base), nil
}

// Save writes r to Dir/filename and returns the path. Existing files are not
// overwritten. The content is written to a hidden temp file first and renamed
// into place, so directory watchers only ever see a complete PDF.
func (d *DocumentFiles) Save(filename string, r io.Reader) (string, error) {
	path, err := d.sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrFileExists, filename)
	}

	tmp, err := os.CreateTemp(d.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filename, err)
	}
	return path, nil
}

// Delete removes Dir/filename and returns the removed path.
func (d *DocumentFiles) Delete(filename string) (string, error) {
	path, err := d.sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		return "", fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return path, nil
}
