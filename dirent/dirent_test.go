package dirent_test

import (
	"fmt"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjorund/extfs/alloc"
	"github.com/kjorund/extfs/dirent"
	"github.com/kjorund/extfs/errors"
	"github.com/kjorund/extfs/image"
)

func newRoot(t *testing.T) (*image.Image, *alloc.Allocator, uint16) {
	img := image.New()
	a := alloc.New(img)
	root, err := a.Allocate(image.ModeDirectory, image.BlockDirEntry)
	require.Nil(t, err)
	return img, a, root
}

func TestInsertAndLookup(t *testing.T) {
	img, a, root := newRoot(t)

	fileInode, err := a.Allocate(image.ModeFile, image.BlockData)
	require.Nil(t, err)

	require.Nil(t, dirent.Insert(img, a, root, "hello.txt", fileInode))

	found, lerr := dirent.Lookup(img, root, "hello.txt")
	require.Nil(t, lerr)
	assert.Equal(t, fileInode, found)
}

func TestInsertRejectsDuplicateName(t *testing.T) {
	img, a, root := newRoot(t)

	f1, _ := a.Allocate(image.ModeFile, image.BlockData)
	f2, _ := a.Allocate(image.ModeFile, image.BlockData)

	require.Nil(t, dirent.Insert(img, a, root, "f", f1))
	err := dirent.Insert(img, a, root, "f", f2)
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNameOccupied))
}

func TestInsertRejectsInvalidName(t *testing.T) {
	img, a, root := newRoot(t)
	f1, _ := a.Allocate(image.ModeFile, image.BlockData)

	err := dirent.Insert(img, a, root, "a b", f1)
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNameInvalidChar))
}

func TestOverflowCreatesContinuationInode(t *testing.T) {
	img, a, root := newRoot(t)

	for i := 0; i < 17; i++ {
		f, err := a.Allocate(image.ModeFile, image.BlockData)
		require.Nil(t, err)
		require.Nil(t, dirent.Insert(img, a, root, fmt.Sprintf("n%02d", i), f))
	}

	assert.NotEqual(t, image.Invalid, img.Nodes[root].NextInode, "17th entry should have spilled into a continuation inode")
	assert.Equal(t, image.ModeContinuation, img.Nodes[img.Nodes[root].NextInode].Mode)

	entities := dirent.Iterate(img, root)
	assert.Len(t, entities, 17)
}

func TestRemoveClearsEntry(t *testing.T) {
	img, a, root := newRoot(t)
	f, _ := a.Allocate(image.ModeFile, image.BlockData)
	require.Nil(t, dirent.Insert(img, a, root, "f", f))

	require.Nil(t, dirent.Remove(img, a, root, "f"))

	_, err := dirent.Lookup(img, root, "f")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestRemoveUnlinksEmptyContinuation(t *testing.T) {
	img, a, root := newRoot(t)

	names := make([]string, 0, 17)
	for i := 0; i < 17; i++ {
		f, err := a.Allocate(image.ModeFile, image.BlockData)
		require.Nil(t, err)
		name := fmt.Sprintf("n%02d", i)
		names = append(names, name)
		require.Nil(t, dirent.Insert(img, a, root, name, f))
	}

	cont := img.Nodes[root].NextInode
	require.NotEqual(t, image.Invalid, cont)

	// The continuation inode holds only the 17th entry; removing it should
	// unlink and release the continuation inode entirely.
	require.Nil(t, dirent.Remove(img, a, root, names[16]))

	assert.EqualValues(t, image.Invalid, img.Nodes[root].NextInode)
	assert.EqualValues(t, 0, img.Super.InodeBitmap[cont], "emptied continuation inode should be released")
}

func TestTeardownRecursesAndExemptsRoot(t *testing.T) {
	img, a, root := newRoot(t)

	sub, err := a.Allocate(image.ModeDirectory, image.BlockDirEntry)
	require.Nil(t, err)
	require.Nil(t, dirent.Insert(img, a, root, "sub", sub))

	f, err := a.Allocate(image.ModeFile, image.BlockData)
	require.Nil(t, err)
	require.Nil(t, dirent.Insert(img, a, sub, "leaf", f))

	dirent.Teardown(img, a, root)

	assert.Empty(t, dirent.Iterate(img, root))
	assert.EqualValues(t, 1, img.Super.InodeBitmap[root], "root must survive teardown")
	assert.EqualValues(t, 0, img.Super.InodeBitmap[sub], "sub-directory must be released")
	assert.EqualValues(t, 0, img.Super.InodeBitmap[f], "leaf file must be released")
}

func TestValidateNameBoundary(t *testing.T) {
	tooLong := make([]byte, image.MaxFilename-1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	assert.NotNil(t, dirent.ValidateName(string(tooLong)))

	oneLess := tooLong[:len(tooLong)-1]
	assert.Nil(t, dirent.ValidateName(string(oneLess)))
}
