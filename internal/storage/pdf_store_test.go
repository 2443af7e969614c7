package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPDFStore_SaveAndCache(t *testing.T) {
	store, err := NewPDFStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	content := []byte("%PDF-1.4 fake invoice content")

	t.Run("saves valid pdf content", func(t *testing.T) {
		path, err := store.Save("77", content)
		require.NoError(t, err)
		assert.FileExists(t, path)

		saved, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, saved)
	})

	t.Run("cached path returned after save", func(t *testing.T) {
		path, ok := store.CachedPath("77")
		assert.True(t, ok)
		assert.Equal(t, store.Path("77"), path)
	})

	t.Run("no cache hit for unknown invoice", func(t *testing.T) {
		_, ok := store.CachedPath("unknown")
		assert.False(t, ok)
	})

	t.Run("empty file is not a cache hit", func(t *testing.T) {
		require.NoError(t, os.WriteFile(store.Path("empty"), nil, 0644))
		_, ok := store.CachedPath("empty")
		assert.False(t, ok)
	})

	t.Run("rejects non-pdf content", func(t *testing.T) {
		_, err := store.Save("88", []byte("<html>not a pdf</html>"))
		assert.Error(t, err)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		_, err := store.Save("88", nil)
		assert.Error(t, err)
	})

	t.Run("rejects traversal in invoice id", func(t *testing.T) {
		_, err := store.Save("../../../evil", content)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "escapes storage directory")
	})
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF([]byte("%PDF-1.7")))
	assert.False(t, LooksLikePDF([]byte("PDF-1.7")))
	assert.False(t, LooksLikePDF(nil))
}
