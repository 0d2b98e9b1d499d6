package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Save(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "/static/generated/")
	require.NoError(t, err)

	ref, err := s.Save(context.Background(), "audio", ".mp3", []byte("ID3"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/static/generated/audio_"))
	assert.True(t, strings.HasSuffix(ref, ".mp3"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(ref)))
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_RejectsEmpty(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "/g")
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "image", "png", nil)
	assert.Error(t, err)
}
