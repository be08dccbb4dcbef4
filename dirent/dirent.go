// Package dirent implements the directory engine described in spec.md §4.3:
// a directory is a linked chain of inodes (a ModeDirectory head followed by
// zero or more ModeContinuation inodes), each owning one 16-slot entry
// block. This package provides Lookup/Insert/Remove/Iterate/Teardown over
// that chain.
package dirent

import (
	"regexp"

	"github.com/kjorund/extfs/alloc"
	"github.com/kjorund/extfs/errors"
	"github.com/kjorund/extfs/image"
)

// validNameRE enforces invariant 9: only [A-Za-z0-9._], checked byte-wise
// exactly like the C original's isalnum(path[i]) || path[i]=='.' || '_'.
var validNameRE = regexp.MustCompile(`^[A-Za-z0-9._]+$`)

// ValidateName checks a single path component against invariant 9: nonempty,
// shorter than MaxFilename-1, composed only of [A-Za-z0-9._], and not "."
// or "..". It does not check for collisions in a particular directory;
// that's Insert's job.
func ValidateName(name string) errors.FSError {
	if len(name) == 0 {
		return errors.ErrNameEmpty
	}
	if len(name) >= image.MaxFilename-1 {
		return errors.ErrNameTooLong
	}
	if !validNameRE.MatchString(name) {
		return errors.ErrNameInvalidChar
	}
	if name == "." || name == ".." {
		return errors.ErrNameDotOrDotDot
	}
	return nil
}

// Entity describes one occupied slot yielded by Iterate.
type Entity struct {
	Name       string
	Inode      uint16
	Mode       uint32
	ChainInode uint16 // the chain member (head or continuation) owning the slot
	Slot       int
}

// Lookup walks the chain rooted at dirHead looking for name, comparing
// byte-for-byte with no normalization (spec.md §9). Returns the target
// inode id, or ErrNotFound.
func Lookup(img *image.Image, dirHead uint16, name string) (uint16, errors.FSError) {
	found := false
	var result uint16

	walkChain(img, dirHead, func(chainInode uint16, slot int, e image.Entry) bool {
		if e.NameString() == name {
			result = uint16(e.ID)
			found = true
			return false
		}
		return true
	})

	if !found {
		return 0, errors.ErrNotFound
	}
	return result, nil
}

// Insert adds a (name -> targetInode) entry into the chain rooted at
// dirHead. It validates the name, rejects collisions, and on success
// either reuses a free slot or allocates a new continuation inode.
//
// If allocation of a continuation inode fails, Insert returns the error and
// makes no change to the chain; the caller remains responsible for
// releasing targetInode itself (spec.md §4.3: "insertion is atomic failure").
func Insert(img *image.Image, a *alloc.Allocator, dirHead uint16, name string, targetInode uint16) errors.FSError {
	if err := ValidateName(name); err != nil {
		return err
	}

	if _, err := Lookup(img, dirHead, name); err == nil {
		return errors.ErrNameOccupied
	}

	var entry image.Entry
	entry.ID = uint32(targetInode)
	entry.SetName(name)

	lastChainMember := dirHead
	cur := dirHead
	for {
		node := &img.Nodes[cur]
		block := &img.Blocks[node.Blocks[0]]

		for slot := 0; slot < image.DirentriesPerBlock; slot++ {
			if node.EntryBitmap[slot] == 0 {
				node.EntryBitmap[slot] = 1
				node.EntryCount++
				block.SetEntry(slot, entry)
				return nil
			}
		}

		lastChainMember = cur
		if node.NextInode == image.Invalid {
			break
		}
		cur = node.NextInode
	}

	// No free slot anywhere in the chain: allocate a continuation inode.
	newCont, err := a.Allocate(image.ModeContinuation, image.BlockDirEntry)
	if err != nil {
		return err
	}

	contNode := &img.Nodes[newCont]
	contNode.EntryBitmap[0] = 1
	contNode.EntryCount++
	img.Blocks[contNode.Blocks[0]].SetEntry(0, entry)
	img.Nodes[lastChainMember].NextInode = newCont

	return nil
}

// Remove clears the entry named name from the chain rooted at dirHead. The
// caller remains responsible for releasing the target inode itself (files
// and directories are released differently).
//
// Per the redesigned behavior in spec.md §9 ("Open questions"), if removing
// the entry leaves a non-head chain member with EntryCount == 0, that
// continuation inode is unlinked from the chain and released.
func Remove(img *image.Image, a *alloc.Allocator, dirHead uint16, name string) errors.FSError {
	prev := uint16(image.Invalid)
	cur := dirHead
	for {
		node := &img.Nodes[cur]
		block := &img.Blocks[node.Blocks[0]]

		for slot := 0; slot < image.DirentriesPerBlock; slot++ {
			if node.EntryBitmap[slot] == 0 {
				continue
			}
			if block.GetEntry(slot).NameString() != name {
				continue
			}

			node.EntryBitmap[slot] = 0
			node.EntryCount--
			block.ClearEntry(slot)

			if cur != dirHead && node.EntryCount == 0 {
				unlinkContinuation(img, a, prev, cur)
			}
			return nil
		}

		if node.NextInode == image.Invalid {
			return errors.ErrNotFound
		}
		prev = cur
		cur = node.NextInode
	}
}

// unlinkContinuation splices chain member cont out of the chain whose
// predecessor is prev, and releases it.
func unlinkContinuation(img *image.Image, a *alloc.Allocator, prev, cont uint16) {
	img.Nodes[prev].NextInode = img.Nodes[cont].NextInode
	a.Release(cont)
}

// Iterate yields every occupied slot in chain order, resolving each
// referenced inode's mode so callers don't have to do a second lookup.
func Iterate(img *image.Image, dirHead uint16) []Entity {
	var result []Entity

	walkChain(img, dirHead, func(chainInode uint16, slot int, e image.Entry) bool {
		result = append(result, Entity{
			Name:       e.NameString(),
			Inode:      uint16(e.ID),
			Mode:       img.Nodes[e.ID].Mode,
			ChainInode: chainInode,
			Slot:       slot,
		})
		return true
	})

	return result
}

// Teardown recursively releases every descendant of dirHead: for each
// occupied slot, it recurses into sub-directories first, then releases
// every chain member of the sub-entry and clears the slot. dirHead itself
// is exempt (never released) but has all its entries cleared; dirHead and
// its continuation inodes stay allocated and linked, and releasing them is
// left to the caller.
func Teardown(img *image.Image, a *alloc.Allocator, dirHead uint16) {
	cur := dirHead
	for {
		node := &img.Nodes[cur]
		block := &img.Blocks[node.Blocks[0]]

		for slot := 0; slot < image.DirentriesPerBlock; slot++ {
			if node.EntryBitmap[slot] == 0 {
				continue
			}

			childID := uint16(block.GetEntry(slot).ID)
			if img.Nodes[childID].Mode == image.ModeDirectory {
				Teardown(img, a, childID)
			}

			node.EntryBitmap[slot] = 0
			node.EntryCount--
			block.ClearEntry(slot)

			releaseChain(img, a, childID)
		}

		cur = node.NextInode
		if cur == image.Invalid {
			break
		}
	}
}

// releaseChain releases every inode in the chain started at head
// (head included), following NextInode links.
func releaseChain(img *image.Image, a *alloc.Allocator, head uint16) {
	cur := head
	for cur != image.Invalid {
		next := img.Nodes[cur].NextInode
		a.Release(cur)
		cur = next
	}
}

// walkChain calls visit for every occupied slot in the chain rooted at
// dirHead, in chain order, stopping early if visit returns false.
func walkChain(img *image.Image, dirHead uint16, visit func(chainInode uint16, slot int, e image.Entry) bool) {
	cur := dirHead
	for {
		node := &img.Nodes[cur]
		block := &img.Blocks[node.Blocks[0]]

		for slot := 0; slot < image.DirentriesPerBlock; slot++ {
			if node.EntryBitmap[slot] == 0 {
				continue
			}
			if !visit(cur, slot, block.GetEntry(slot)) {
				return
			}
		}

		if node.NextInode == image.Invalid {
			return
		}
		cur = node.NextInode
	}
}
