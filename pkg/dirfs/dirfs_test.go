package dirfs

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, content string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "1-100.png", "a")
	touch(t, root, "2-200.PNG", "b")
	touch(t, root, "data.txt", "c")
	touch(t, root, ".1-100.png.tmp-123", "d")
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub.png"), 0755))

	d, err := Open(logs.NewTestingLog(t), root)
	require.NoError(t, err)

	names, err := d.List("png")
	require.NoError(t, err)
	sort.Strings(names)
	require.Equal(t, []string{"1-100.png", "2-200.PNG"}, names)

	// Rename refuses to clobber
	err = d.Rename("1-100.png", "2-200.PNG")
	require.True(t, errors.Is(err, ErrExists))
	require.NoError(t, d.Rename("2-200.PNG", "5-200.PNG"))
	require.NoError(t, d.Rename("1-100.png", "1-100.png"))

	require.NoError(t, d.Delete("1-100.png"))
	require.Error(t, d.Delete("1-100.png"))

	require.NoError(t, d.WriteFile("data.txt", []byte("new")))
	b, err := d.ReadFile("data.txt")
	require.NoError(t, err)
	require.Equal(t, "new", string(b))

	require.Error(t, d.Delete("../escape"))
	require.Error(t, d.Rename("5-200.PNG", "sub/x.png"))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
