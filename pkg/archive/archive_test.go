package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestCanExtract(t *testing.T) {
	m := NewManager()

	assert.True(t, m.CanExtract("ECA_EXBA_ATL_NOM_1B.ZIP"))
	assert.True(t, m.CanExtract("bundle.zip"))
	assert.True(t, m.CanExtract("bundle.tgz"))
	assert.True(t, m.CanExtract("bundle.tar"))
	assert.False(t, m.CanExtract("product.h5"))
	assert.False(t, m.CanExtract("noextension"))
}

func TestExtractAll(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "bundle.zip")
	writeZip(t, bundle, map[string]string{
		"product.h5":       "science data",
		"meta/product.xml": "<metadata/>",
	})

	dest := filepath.Join(dir, "bundle")
	m := NewManager()
	require.NoError(t, m.ExtractAll(context.Background(), bundle, dest))

	data, err := os.ReadFile(filepath.Join(dest, "product.h5"))
	require.NoError(t, err)
	assert.Equal(t, []byte("science data"), data)

	data, err = os.ReadFile(filepath.Join(dest, "meta", "product.xml"))
	require.NoError(t, err)
	assert.Equal(t, []byte("<metadata/>"), data)

	// original bundle stays in place
	_, err = os.Stat(bundle)
	assert.NoError(t, err)
}

func TestExtractAll_MissingArchive(t *testing.T) {
	m := NewManager()
	err := m.ExtractAll(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), t.TempDir())
	assert.Error(t, err)
}
