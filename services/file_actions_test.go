package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFiles_SaveAndDelete(t *testing.T) {
	files, err := NewDocumentFiles(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	path, err := files.Save("report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(files.Dir, "report.pdf"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))

	entries, err := os.ReadDir(files.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")

	_, err = files.Save("report.pdf", strings.NewReader("again"))
	assert.ErrorIs(t, err, ErrFileExists)

	removed, err := files.Delete("report.pdf")
	require.NoError(t, err)
	assert.Equal(t, path, removed)

	_, err = files.Delete("report.pdf")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDocumentFiles_RejectsBadNames(t *testing.T) {
	files, err := NewDocumentFiles(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../escape.pdf", "sub/dir.pdf", "notes.md", ".hidden.pdf", "", ".."} {
		_, err := files.Save(name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
		_, err = files.Delete(name)
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}

	_, err = NewDocumentFiles("")
	assert.Error(t, err)
}
