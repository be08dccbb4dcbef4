// Package alloc implements the inode/block allocator described in
// spec.md §4.1: lowest-index-first allocation of an (inode, block) pair,
// and release of both halves together.
package alloc

import (
	"github.com/boljen/go-bitmap"

	"github.com/kjorund/extfs/errors"
	"github.com/kjorund/extfs/image"
)

// Allocator reserves and releases (inode, block) pairs from an *image.Image.
//
// The image's SuperBlock bitmaps are byte-per-slot arrays (spec.md §3, §6)
// because block entries are tri-state (free/data/dir-entry); they can't be
// represented directly as bitmap.Bitmap without changing the wire format.
// Allocator instead keeps a bit-packed shadow index mirroring "used at all",
// used only to find the lowest free slot quickly; the canonical byte arrays
// in the Image remain the only thing that's serialized.
type Allocator struct {
	img          *image.Image
	freeInodeIdx bitmap.Bitmap
	freeBlockIdx bitmap.Bitmap
}

// New builds an Allocator over img, rebuilding its shadow index from the
// image's current bitmaps. Call this after image.New()/Fmt and after
// persistence.Load, since the shadow index is not itself persisted.
func New(img *image.Image) *Allocator {
	a := &Allocator{
		img:          img,
		freeInodeIdx: bitmap.New(image.MaxInode),
		freeBlockIdx: bitmap.New(image.MaxBlock),
	}
	a.Resync()
	return a
}

// Resync rebuilds the shadow free-index from the image's canonical bitmaps.
// Needed whenever the Image's bitmaps are mutated without going through this
// Allocator (e.g. immediately after persistence.Load populates an Image).
func (a *Allocator) Resync() {
	for i := 0; i < image.MaxInode; i++ {
		a.freeInodeIdx.Set(i, a.img.Super.InodeBitmap[i] != 0)
	}
	for i := 0; i < image.MaxBlock; i++ {
		a.freeBlockIdx.Set(i, a.img.Super.BlockBitmap[i] != 0)
	}
}

// Allocate reserves the lowest-indexed free inode and the lowest-indexed
// free block, marks both used, and initializes the inode: Mode is set,
// Blocks[0] points at the reserved block, EntryBitmap is zeroed, and
// NextInode is Invalid.
//
// If no inode is free, it returns ErrNoFreeInode. If an inode was found but
// no block is free, the inode is marked free again before returning
// ErrNoFreeBlock (spec.md §4.1: "on block exhaustion the inode is still
// marked free before returning").
func (a *Allocator) Allocate(mode uint32, blockKind uint8) (uint16, errors.FSError) {
	inodeIdx := a.firstFreeInode()
	if inodeIdx < 0 {
		return 0, errors.ErrNoFreeInode
	}

	blockIdx := a.firstFreeBlock()
	if blockIdx < 0 {
		return 0, errors.ErrNoFreeBlock
	}

	a.img.Super.InodeBitmap[inodeIdx] = 1
	a.freeInodeIdx.Set(inodeIdx, true)
	a.img.Super.BlockBitmap[blockIdx] = blockKind
	a.freeBlockIdx.Set(blockIdx, true)

	node := &a.img.Nodes[inodeIdx]
	*node = image.Inode{
		Mode:      mode,
		NextInode: image.Invalid,
	}
	node.Blocks[0] = uint32(blockIdx)

	return uint16(inodeIdx), nil
}

// Release clears both bitmap entries for inodeID and its owned block,
// returning the inode to a zeroed state. Idempotent: releasing an
// already-free inode is a no-op.
func (a *Allocator) Release(inodeID uint16) {
	if a.img.Super.InodeBitmap[inodeID] == 0 {
		return
	}

	node := &a.img.Nodes[inodeID]
	blockIdx := node.Blocks[0]

	a.img.Super.BlockBitmap[blockIdx] = image.BlockFree
	a.freeBlockIdx.Set(int(blockIdx), false)
	a.img.Super.InodeBitmap[inodeID] = 0
	a.freeInodeIdx.Set(int(inodeID), false)

	*node = image.Inode{}
}

func (a *Allocator) firstFreeInode() int {
	for i := 0; i < image.MaxInode; i++ {
		if !a.freeInodeIdx.Get(i) {
			return i
		}
	}
	return -1
}

func (a *Allocator) firstFreeBlock() int {
	for i := 0; i < image.MaxBlock; i++ {
		if !a.freeBlockIdx.Get(i) {
			return i
		}
	}
	return -1
}
