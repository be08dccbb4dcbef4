package fsops_test

import (
	"fmt"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjorund/extfs/errors"
	"github.com/kjorund/extfs/fsops"
	"github.com/kjorund/extfs/image"
)

func namesOf(listing []fsops.DirListing) []string {
	names := make([]string, len(listing))
	for i, l := range listing {
		names[i] = l.Name
	}
	return names
}

func TestFreshStartPwdAndLs(t *testing.T) {
	fs := fsops.New()

	assert.Equal(t, "/", fs.Pwd())

	listing, err := fs.Ls("")
	require.Nil(t, err)
	assert.Contains(t, namesOf(listing), ".")
}

func TestMkdirNestedCdPwd(t *testing.T) {
	fs := fsops.New()

	require.Nil(t, fs.Mkdir("a"))
	require.Nil(t, fs.Mkdir("a/b"))
	require.Nil(t, fs.Cd("a/b"))
	assert.Equal(t, "/a/b", fs.Pwd())
}

func TestEchoCatRoundTrip(t *testing.T) {
	fs := fsops.New()

	require.Nil(t, fs.Echo("hello", "f"))

	content, err := fs.Cat("f")
	require.Nil(t, err)
	assert.Equal(t, "hello", content)

	listing, err := fs.Ls("")
	require.Nil(t, err)
	assert.Contains(t, namesOf(listing), "f")
}

func TestMkdirRejectsInvalidName(t *testing.T) {
	fs := fsops.New()

	require.Nil(t, fs.Mkdir("a"))
	err := fs.Mkdir("a b")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNameInvalidChar))
}

func TestMkdirSeventeenTimesCreatesContinuation(t *testing.T) {
	fs := fsops.New()

	for i := 0; i < 17; i++ {
		require.Nil(t, fs.Mkdir(fmt.Sprintf("n%02d", i)))
	}

	listing, err := fs.Ls("")
	require.Nil(t, err)

	count := 0
	for _, l := range listing {
		if l.Name != "." && l.Name != ".." {
			count++
		}
	}
	assert.Equal(t, 17, count)

	dmp := fs.Dmp()
	foundContinuation := false
	for _, r := range dmp {
		if r.Mode == image.ModeDirectory && r.NextInode != image.Invalid {
			foundContinuation = true
		}
	}
	assert.True(t, foundContinuation, "root directory should have spilled into a continuation inode")
}

func TestRmRemovesFileAndFreesResources(t *testing.T) {
	fs := fsops.New()
	beforeInodes := fs.Img.Super.InodeBitmap
	beforeBlocks := fs.Img.Super.BlockBitmap

	require.Nil(t, fs.Echo("hi", "g"))
	require.Nil(t, fs.Rm("g"))

	_, err := fs.Cat("g")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	assert.Equal(t, beforeInodes, fs.Img.Super.InodeBitmap)
	assert.Equal(t, beforeBlocks, fs.Img.Super.BlockBitmap)
}

func TestRmRejectsTrailingSlash(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Echo("hi", "g"))

	err := fs.Rm("g/")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUseRmdirForDirectories))
}

func TestRmdirOfRootReformats(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))

	require.Nil(t, fs.Rmdir("/"))

	listing, err := fs.Ls("")
	require.Nil(t, err)
	assert.NotContains(t, namesOf(listing), "a")
}

func TestRmdirOfAncestorRewindsCwd(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))
	require.Nil(t, fs.Mkdir("a/b"))
	require.Nil(t, fs.Cd("a/b"))

	require.Nil(t, fs.Rmdir("/a"))
	assert.Equal(t, "/", fs.Pwd())
}

func TestCdDotIsNoop(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))
	require.Nil(t, fs.Cd("a"))

	before := fs.Pwd()
	require.Nil(t, fs.Cd("."))
	assert.Equal(t, before, fs.Pwd())
}

func TestCdDotDotThenBackRestoresState(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))
	require.Nil(t, fs.Cd("a"))

	require.Nil(t, fs.Cd(".."))
	require.Nil(t, fs.Cd("a"))
	assert.Equal(t, "/a", fs.Pwd())
}

func TestFmtTwiceProducesIdenticalImages(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))

	fs.Fmt()
	first := *fs.Img

	fs.Fmt()
	second := *fs.Img

	assert.Equal(t, first, second)
}

func TestMkdirRmdirRestoresBitmaps(t *testing.T) {
	fs := fsops.New()

	beforeInodes := fs.Img.Super.InodeBitmap
	beforeBlocks := fs.Img.Super.BlockBitmap

	require.Nil(t, fs.Mkdir("p"))
	require.Nil(t, fs.Rmdir("p"))

	assert.Equal(t, beforeInodes, fs.Img.Super.InodeBitmap)
	assert.Equal(t, beforeBlocks, fs.Img.Super.BlockBitmap)
}

func TestMkdirRootFails(t *testing.T) {
	fs := fsops.New()
	err := fs.Mkdir("/")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrCannotMkdirRoot))
}

func TestCatOnDirectoryFails(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))

	_, err := fs.Cat("a")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrIsADirectory))
}

func TestFilenameBoundary(t *testing.T) {
	fs := fsops.New()

	tooLong := make([]byte, image.MaxFilename-1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	err := fs.Mkdir(string(tooLong))
	require.NotNil(t, err)

	oneLess := string(tooLong[:len(tooLong)-1])
	assert.Nil(t, fs.Mkdir(oneLess))
}

func TestFsckCleanImage(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))
	require.Nil(t, fs.Echo("hi", "a/f"))

	assert.Nil(t, fs.Fsck())
}

func TestDumpCSVListsAllocatedInodes(t *testing.T) {
	fs := fsops.New()
	require.Nil(t, fs.Mkdir("a"))

	out, err := fs.DumpCSV()
	require.NoError(t, err)
	assert.Contains(t, out, "inode")
}
