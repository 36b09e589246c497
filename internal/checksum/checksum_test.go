package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.dump")
	require.NoError(t, os.WriteFile(path, []byte("PGDMP payload"), 0o644))

	first, err := File(path)
	require.NoError(t, err)
	second, err := File(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestFileDetectsMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.dump")
	require.NoError(t, os.WriteFile(path, []byte("PGDMP payload"), 0o644))

	before, err := File(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	after, err := File(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestReaderMatchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.dump")
	require.NoError(t, os.WriteFile(path, []byte("same bytes"), 0o644))

	fromFile, err := File(path)
	require.NoError(t, err)
	fromReader, err := Reader(strings.NewReader("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, fromFile, fromReader)
}
