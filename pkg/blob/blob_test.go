package blob

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	url, err := s.Upload(context.Background(), []byte("firma"), "signatures")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "mem://signatures/"))

	got, err := s.Get(url)
	require.NoError(t, err)
	assert.Equal(t, []byte("firma"), got)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreCopiesData(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("original")
	url, err := s.Upload(context.Background(), data, "signatures")
	require.NoError(t, err)

	data[0] = 'X'
	got, err := s.Get(url)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestFilesystemStoreWritesFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir, "")
	require.NoError(t, err)

	url, err := s.Upload(context.Background(), []byte("png-bytes"), "signatures")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "file://"))

	content, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), content)
}

func TestFilesystemStoreBaseURL(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir(), "https://files.example.com/blobs")
	require.NoError(t, err)

	url, err := s.Upload(context.Background(), []byte("x"), "certs")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://files.example.com/blobs/certs/"))
}
