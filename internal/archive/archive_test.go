package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "invoices"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("top level"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "invoices", "2026-01.pdf"), []byte("invoice body"), 0o644))
	return root
}

func TestBuildManifest(t *testing.T) {
	root := seedTree(t)

	m, err := BuildManifest(root)
	require.NoError(t, err)

	assert.Equal(t, 2, m.FileCount)
	assert.Equal(t, int64(len("top level")+len("invoice body")), m.TotalSize)

	paths := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		paths = append(paths, e.Path)
		assert.NotEmpty(t, e.Checksum)
		assert.Positive(t, e.Size)
	}
	assert.ElementsMatch(t, []string{"readme.txt", "invoices/2026-01.pdf"}, paths)
}

func TestCreateListRoundtrip(t *testing.T) {
	root := seedTree(t)
	m, err := BuildManifest(root)
	require.NoError(t, err)

	archivePath := filepath.Join(t.TempDir(), "snap.tar.gz")
	require.NoError(t, Create(archivePath, root, m))

	entries, err := List(archivePath)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, ManifestName, entries[0], "manifest must be the first entry")
	assert.Contains(t, entries, "readme.txt")
	assert.Contains(t, entries, "invoices/2026-01.pdf")
}

func TestReadManifest(t *testing.T) {
	root := seedTree(t)
	m, err := BuildManifest(root)
	require.NoError(t, err)

	archivePath := filepath.Join(t.TempDir(), "snap.tar.gz")
	require.NoError(t, Create(archivePath, root, m))

	got, err := ReadManifest(archivePath)
	require.NoError(t, err)
	assert.Equal(t, m.FileCount, got.FileCount)
	assert.Equal(t, m.TotalSize, got.TotalSize)
	assert.Len(t, got.Entries, 2)
}

func TestExtract(t *testing.T) {
	root := seedTree(t)
	m, err := BuildManifest(root)
	require.NoError(t, err)

	archivePath := filepath.Join(t.TempDir(), "snap.tar.gz")
	require.NoError(t, Create(archivePath, root, m))

	dest := t.TempDir()
	require.NoError(t, Extract(archivePath, dest))

	body, err := os.ReadFile(filepath.Join(dest, "invoices", "2026-01.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "invoice body", string(body))
}

func TestExtractRejectsEscapingEntry(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	payload := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../escape.txt",
		Mode: 0o644,
		Size: int64(len(payload)),
	}))
	_, err = tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(t.TempDir(), "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	err = Extract(archivePath, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
