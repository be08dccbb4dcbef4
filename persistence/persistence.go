// Package persistence implements load/save of an *image.Image against a
// single binary file, per spec.md §4.5 and §6: the exact byte-offset
// layout, with missing/short/mismatched-version files triggering a fresh
// format instead of a read error.
package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio"
	"github.com/noxer/bytewriter"
	"github.com/xaionaro-go/bytesextra"

	"github.com/kjorund/extfs/image"
)

// Offsets into the serialized image, per spec.md §6.
const (
	offsetVersion     = 0
	offsetInodeBitmap = offsetVersion + 4
	offsetBlockBitmap = offsetInodeBitmap + image.MaxInode
	offsetNodes       = offsetBlockBitmap + image.MaxBlock
	inodeDiskSize     = 4 + 4 + 2 + 2 + image.DirentriesPerBlock + 4
	offsetBlocks      = offsetNodes + inodeDiskSize*image.MaxInode
	ImageSize         = offsetBlocks + image.BlockSize*image.MaxBlock
)

// Load reads path and decodes it into an *image.Image. If the file does
// not exist, is shorter than ImageSize, or carries a version other than
// image.CurrentVersion, Load returns a freshly formatted image instead of
// an error — mirroring read_fs()'s "file not found/version mismatch ->
// format" fallback. freshlyFormatted reports whether that fallback happened;
// the fallback image (from image.New) has no root directory allocated yet.
func Load(path string) (img *image.Image, freshlyFormatted bool, err error) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil || len(raw) < ImageSize {
		return image.New(), true, nil
	}

	version := binary.LittleEndian.Uint32(raw[offsetVersion : offsetVersion+4])
	if version != image.CurrentVersion {
		return image.New(), true, nil
	}

	img = &image.Image{Version: version}
	copy(img.Super.InodeBitmap[:], raw[offsetInodeBitmap:offsetBlockBitmap])
	copy(img.Super.BlockBitmap[:], raw[offsetBlockBitmap:offsetNodes])

	reader := bytesextra.NewReadWriteSeeker(raw[offsetNodes:offsetBlocks])
	for i := 0; i < image.MaxInode; i++ {
		if decodeErr := decodeInode(reader, &img.Nodes[i]); decodeErr != nil {
			return nil, false, fmt.Errorf("persistence: decoding inode %d: %w", i, decodeErr)
		}
	}

	blocksRaw := raw[offsetBlocks:]
	for i := 0; i < image.MaxBlock; i++ {
		copy(img.Blocks[i].Data[:], blocksRaw[i*image.BlockSize:(i+1)*image.BlockSize])
	}

	return img, false, nil
}

// Save encodes img and writes it atomically to path (temp file + rename),
// matching write_fs()'s "single write of the full buffer" but without the
// truncation window a plain os.WriteFile leaves on crash.
func Save(path string, img *image.Image) error {
	buf := make([]byte, ImageSize)

	binary.LittleEndian.PutUint32(buf[offsetVersion:offsetVersion+4], img.Version)
	copy(buf[offsetInodeBitmap:offsetBlockBitmap], img.Super.InodeBitmap[:])
	copy(buf[offsetBlockBitmap:offsetNodes], img.Super.BlockBitmap[:])

	writer := bytewriter.New(buf[offsetNodes:offsetBlocks])
	for i := 0; i < image.MaxInode; i++ {
		if err := encodeInode(writer, &img.Nodes[i]); err != nil {
			return fmt.Errorf("persistence: encoding inode %d: %w", i, err)
		}
	}

	blocksBuf := buf[offsetBlocks:]
	for i := 0; i < image.MaxBlock; i++ {
		copy(blocksBuf[i*image.BlockSize:(i+1)*image.BlockSize], img.Blocks[i].Data[:])
	}

	return renameio.WriteFile(path, buf, 0644)
}

// encodeInode writes one Inode in the exact 32-byte on-disk order from
// spec.md §6: mode, file_size, entry_count, next_inode, entry_bitmap,
// blocks[0].
func encodeInode(w io.Writer, node *image.Inode) error {
	fields := []any{
		node.Mode,
		node.FileSize,
		node.EntryCount,
		node.NextInode,
		node.EntryBitmap,
		node.Blocks[0],
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeInode(r io.Reader, node *image.Inode) error {
	fields := []any{
		&node.Mode,
		&node.FileSize,
		&node.EntryCount,
		&node.NextInode,
		&node.EntryBitmap,
		&node.Blocks[0],
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
