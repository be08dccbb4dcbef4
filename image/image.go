// Package image implements the on-disk data model described in spec.md §3:
// a fixed-capacity inode table, block table, and the bitmaps that track
// their allocation state. It owns no I/O and no path/name semantics; those
// live in persistence, pathresolve, and dirent respectively.
package image

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Fixed capacities, ground truth taken from original_source/main.c and
// spec.md §3.
const (
	MaxInode           = 4096
	MaxBlock           = 4096
	BlockSize          = 4096
	MaxFilename        = 252
	DirentriesPerBlock = 16
	MaxPathDepth       = 256
	MaxBlocksPerInode  = 1

	// CurrentVersion is the format tag written by Fmt and checked on Load.
	// Carried over from the C original's CURRENT_VERSION literal.
	CurrentVersion = 20171213
)

// Invalid marks "no continuation inode" in Inode.NextInode.
const Invalid uint16 = 0xFFFF

// ErrorIndex marks "no such inode/block" for functions that otherwise return
// a valid table index. Named ErrorIndex (rather than Error) to not collide
// with the `error` built-in type.
const ErrorIndex uint32 = 0x7FFFFFFF

// Mode tags for Inode.Mode.
const (
	ModeDirectory    = uint32(1)
	ModeFile         = uint32(2)
	ModeContinuation = uint32(3)
)

// Block kinds for SuperBlock.BlockBitmap entries.
const (
	BlockFree     = uint8(0)
	BlockData     = uint8(1)
	BlockDirEntry = uint8(2)
)

// SuperBlock holds the allocation bitmaps. Each entry is one byte per
// inode/block (not bit-packed) because block entries are tri-state (free,
// data, dir-entry) and the persisted layout in spec.md §6 reserves a full
// byte per slot.
type SuperBlock struct {
	InodeBitmap [MaxInode]uint8
	BlockBitmap [MaxBlock]uint8
}

// Entry is a single directory slot: a target inode id plus a NUL-padded
// name. On disk this is exactly 4 + MaxFilename bytes, repeated
// DirentriesPerBlock times per directory-entry block.
type Entry struct {
	ID   uint32
	Name [MaxFilename]byte
}

// NameString returns the entry's name as a Go string, stopping at the first
// NUL byte.
func (e *Entry) NameString() string {
	for i, b := range e.Name {
		if b == 0 {
			return string(e.Name[:i])
		}
	}
	return string(e.Name[:])
}

// SetName copies name into the entry's fixed-size buffer, NUL-padding the
// remainder. The caller is responsible for validating name first.
func (e *Entry) SetName(name string) {
	e.Name = [MaxFilename]byte{}
	copy(e.Name[:], name)
}

// Inode is the fixed 32-byte (on disk) record describing one directory head,
// directory continuation, or file, plus the single block it owns.
type Inode struct {
	Mode        uint32
	FileSize    uint32
	EntryCount  uint16
	NextInode   uint16
	EntryBitmap [DirentriesPerBlock]uint8
	Blocks      [MaxBlocksPerInode]uint32
}

// Block is the raw contents of one 4096-byte block. Interpretation (file
// payload vs. directory-entry array) is governed by the owning inode's mode,
// mirroring the C original's `union data`.
type Block struct {
	Data [BlockSize]byte
}

// Image is the full in-memory filesystem state: the version tag, the
// super-block bitmaps, the inode table, and the block table. An fsops.FS
// holds one instance at a time; Fmt and a reload replace it with a new one.
type Image struct {
	Version uint32
	Super   SuperBlock
	Nodes   [MaxInode]Inode
	Blocks  [MaxBlock]Block
}

// New returns a freshly formatted Image: every bitmap cleared, every inode
// zeroed, version stamped, with no root directory allocated yet. Callers
// (fsops.Fmt) are responsible for allocating the root directory inode
// immediately afterward so invariant 5 (root always exists) holds.
func New() *Image {
	return &Image{Version: CurrentVersion}
}

// CheckInvariants walks the whole image plus the caller's working-directory
// stack (root through cwd inclusive) and reports every violation of the
// properties in spec.md §8 it can detect. It never stops at the first
// failure: every problem found is collected into the returned multierror
// so a single run gives the whole picture.
func (img *Image) CheckInvariants(stack []uint16) error {
	var result *multierror.Error

	for i := 0; i < MaxInode; i++ {
		used := img.Super.InodeBitmap[i] != 0
		node := &img.Nodes[i]

		if !used {
			continue
		}

		switch node.Mode {
		case ModeDirectory, ModeContinuation:
			if img.Super.BlockBitmap[node.Blocks[0]] != BlockDirEntry {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d: mode %d but owned block %d has bitmap kind %d, want %d",
					i, node.Mode, node.Blocks[0], img.Super.BlockBitmap[node.Blocks[0]], BlockDirEntry))
			}
		case ModeFile:
			if img.Super.BlockBitmap[node.Blocks[0]] != BlockData {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d: mode file but owned block %d has bitmap kind %d, want %d",
					i, node.Blocks[0], img.Super.BlockBitmap[node.Blocks[0]], BlockData))
			}
		default:
			result = multierror.Append(result, fmt.Errorf(
				"inode %d: invalid mode %d", i, node.Mode))
		}

		if node.Mode == ModeDirectory || node.Mode == ModeContinuation {
			popcount := 0
			for _, bit := range node.EntryBitmap {
				if bit != 0 {
					popcount++
				}
			}
			if popcount != int(node.EntryCount) {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d: entry_count=%d but popcount(entry_bitmap)=%d",
					i, node.EntryCount, popcount))
			}
		}
	}

	if err := img.checkChainsAcyclic(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := img.checkNamesUnique(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := img.checkWorkingDirectoryStack(stack); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// checkChainsAcyclic verifies invariant 7: every directory head's NextInode
// chain terminates at Invalid without revisiting an inode.
func (img *Image) checkChainsAcyclic() error {
	var result *multierror.Error

	for i := 0; i < MaxInode; i++ {
		if img.Super.InodeBitmap[i] == 0 || img.Nodes[i].Mode != ModeDirectory {
			continue
		}

		seen := map[uint16]bool{uint16(i): true}
		cur := img.Nodes[i].NextInode
		for cur != Invalid {
			if seen[cur] {
				result = multierror.Append(result, fmt.Errorf(
					"directory %d: next_inode chain cycles back to %d", i, cur))
				break
			}
			seen[cur] = true
			cur = img.Nodes[cur].NextInode
		}
	}

	return result.ErrorOrNil()
}

// checkNamesUnique verifies invariant 6: within a single directory chain
// (head plus every continuation reachable via NextInode), no name appears
// twice. Walks chains directly off Nodes/Blocks rather than going through
// dirent, since dirent imports image and a reverse import would cycle. A
// cyclic chain is walked once per member; checkChainsAcyclic reports the cycle.
func (img *Image) checkNamesUnique() error {
	var result *multierror.Error

	for i := 0; i < MaxInode; i++ {
		if img.Super.InodeBitmap[i] == 0 || img.Nodes[i].Mode != ModeDirectory {
			continue
		}

		seen := map[string]bool{}
		visited := map[uint16]bool{}
		cur := uint16(i)
		for !visited[cur] {
			visited[cur] = true
			node := &img.Nodes[cur]
			block := &img.Blocks[node.Blocks[0]]

			for slot := 0; slot < DirentriesPerBlock; slot++ {
				if node.EntryBitmap[slot] == 0 {
					continue
				}
				name := block.GetEntry(slot).NameString()
				if seen[name] {
					result = multierror.Append(result, fmt.Errorf(
						"directory %d: name %q appears more than once in the chain", i, name))
				}
				seen[name] = true
			}

			if node.NextInode == Invalid {
				break
			}
			cur = node.NextInode
		}
	}

	return result.ErrorOrNil()
}

// checkWorkingDirectoryStack verifies invariant 8 and §8 properties 6-7: the
// stack is nonempty and its depth (len(stack)-1) is below MaxPathDepth, and
// every inode on it
// (including root) is a currently allocated directory head. Unlike
// pathresolve's scratch stack, the committed working-directory stack never
// ends on a file, so every entry is held to the same rule.
func (img *Image) checkWorkingDirectoryStack(stack []uint16) error {
	var result *multierror.Error

	if len(stack) == 0 {
		return fmt.Errorf("working-directory stack is empty, must contain at least root")
	}
	if len(stack) > MaxPathDepth {
		result = multierror.Append(result, fmt.Errorf(
			"working-directory stack depth %d exceeds MaxPathDepth %d", len(stack), MaxPathDepth))
	}

	for depth, inode := range stack {
		if img.Super.InodeBitmap[inode] == 0 {
			result = multierror.Append(result, fmt.Errorf(
				"working-directory stack[%d]=%d is not an allocated inode", depth, inode))
			continue
		}
		if img.Nodes[inode].Mode != ModeDirectory {
			result = multierror.Append(result, fmt.Errorf(
				"working-directory stack[%d]=%d is not a directory head", depth, inode))
		}
	}

	return result.ErrorOrNil()
}
