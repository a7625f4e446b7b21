// ABOUTME: Tests for upload validation and disk persistence
// ABOUTME: Covers MIME filtering, size caps and filename sanitization

package media

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("application/pdf"))
	assert.True(t, Allowed("image/jpeg"))
	assert.True(t, Allowed("IMAGE/PNG"))
	assert.True(t, Allowed("image/gif; charset=binary"))
	assert.False(t, Allowed("application/x-msdownload"))
	assert.False(t, Allowed("video/mp4"))
	assert.False(t, Allowed(""))
}

func TestValidateSizeCap(t *testing.T) {
	s := NewStore(t.TempDir(), 100, nil)

	require.NoError(t, s.Validate("image/png", 100))
	assert.ErrorIs(t, s.Validate("image/png", 101), ErrTooLarge)
	assert.ErrorIs(t, s.Validate("text/html", 10), ErrDisallowedType)
}

func TestSaveWritesFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0, nil)

	path, err := s.Save(t.Context(), "curriculo.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Contains(t, path, "curriculo.pdf")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestSaveRejectsOversize(t *testing.T) {
	s := NewStore(t.TempDir(), 4, nil)

	_, err := s.Save(t.Context(), "big.pdf", []byte("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestSaveSanitizesName(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0, nil)

	path, err := s.Save(t.Context(), "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.Contains(t, path, dir)
	assert.NotContains(t, path, "..")
}
