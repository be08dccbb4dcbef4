package image

import (
	"bytes"
	"encoding/binary"
)

// entrySize is the on-disk size of one Entry record: a 4-byte id followed by
// a MaxFilename-byte NUL-padded name. DirentriesPerBlock of these tile a
// Block exactly (4+252)*16 == 4096, matching the C original's
// `union data { char data[4096]; struct entry entries[16]; }`.
const entrySize = 4 + MaxFilename

func init() {
	if entrySize*DirentriesPerBlock != BlockSize {
		panic("image: Entry size does not evenly tile a Block")
	}
}

// GetEntry decodes the directory entry at slot i (0 <= i < DirentriesPerBlock)
// from the block's raw bytes. The caller is responsible for checking the
// owning inode's EntryBitmap before trusting the result is meaningful.
func (b *Block) GetEntry(i int) Entry {
	off := i * entrySize
	var e Entry
	e.ID = binary.LittleEndian.Uint32(b.Data[off : off+4])
	copy(e.Name[:], b.Data[off+4:off+entrySize])
	return e
}

// SetEntry writes entry e into slot i of the block's raw bytes.
func (b *Block) SetEntry(i int, e Entry) {
	off := i * entrySize
	binary.LittleEndian.PutUint32(b.Data[off:off+4], e.ID)
	copy(b.Data[off+4:off+entrySize], e.Name[:])
}

// ClearEntry zeroes out slot i. Not required for correctness (the owning
// inode's EntryBitmap is authoritative on occupancy) but keeps stale data
// from lingering in a freed slot, matching invariant 9's expectations for
// any slot a future CheckInvariants pass might inspect.
func (b *Block) ClearEntry(i int) {
	off := i * entrySize
	clear(b.Data[off : off+entrySize])
}

// SetData copies payload into the block as raw file-data bytes, zeroing the
// remainder. The caller is responsible for also setting the owning inode's
// FileSize.
func (b *Block) SetData(payload []byte) {
	clear(b.Data[:])
	copy(b.Data[:], payload)
}

// DataBytes returns the first n bytes of the block's raw contents, as used
// for a file's payload.
func (b *Block) DataBytes(n uint32) []byte {
	return bytes.Clone(b.Data[:n])
}
