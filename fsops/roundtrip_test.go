package fsops_test

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/dirhash"
	"github.com/stretchr/testify/require"

	"github.com/kjorund/extfs/fsops"
	"github.com/kjorund/extfs/persistence"
)

// hashDir walks dir and hashes its file contents with dirhash.Hash1, the
// same pattern dpeckett-archivefs uses to compare a filesystem's exported
// tree against a reference snapshot.
func hashDir(t *testing.T, dir string) string {
	t.Helper()

	fsys := os.DirFS(dir)
	var files []string
	require.NoError(t, fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, filepath.ToSlash(name))
		}
		return nil
	}))

	h, err := dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return fsys.Open(name)
	})
	require.NoError(t, err)
	return h
}

func TestExportRoundTripsAcrossSaveLoad(t *testing.T) {
	fs := fsops.New()
	require.NoError(t, fs.Mkdir("a"))
	require.NoError(t, fs.Mkdir("a/b"))
	require.NoError(t, fs.Echo("hello", "a/b/f.txt"))
	require.NoError(t, fs.Echo("top", "g.txt"))

	before := t.TempDir()
	require.NoError(t, fs.ExportTo(fs.RootInode(), before))
	beforeHash := hashDir(t, before)

	imgPath := before + ".dsk"
	require.NoError(t, persistence.Save(imgPath, fs.Img))

	loadedImg, fresh, err := persistence.Load(imgPath)
	require.NoError(t, err)
	require.False(t, fresh)

	reloaded := fsops.Open(loadedImg)

	after := t.TempDir()
	require.NoError(t, reloaded.ExportTo(reloaded.RootInode(), after))
	afterHash := hashDir(t, after)

	require.Equal(t, beforeHash, afterHash)
}
