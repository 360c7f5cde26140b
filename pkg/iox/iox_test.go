package iox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(fn, []byte("old"), 0600))
	require.NoError(t, WriteFile(fn, []byte("new contents")))

	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, "new contents", string(b))

	st, err := os.Stat(fn)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), st.Mode().Perm())

	// No temporary files left behind
	all, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestWriteFileMissingDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "data.txt"), []byte("x"))
	require.Error(t, err)
}
