package fsops

import (
	"os"
	"path/filepath"

	"github.com/kjorund/extfs/dirent"
	"github.com/kjorund/extfs/image"
)

// ExportTo recursively writes the directory rooted at dirInode (root, if
// fs.RootInode() is passed) out to destDir on the host filesystem, one
// real file per file inode and one real subdirectory per directory inode.
// It exists to make the in-memory tree comparable against an
// os.DirFS-backed hash for round-trip testing.
func (fs *FS) ExportTo(dirInode uint16, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	for _, e := range dirent.Iterate(fs.Img, dirInode) {
		target := filepath.Join(destDir, e.Name)
		switch e.Mode {
		case image.ModeDirectory:
			if err := fs.ExportTo(e.Inode, target); err != nil {
				return err
			}
		case image.ModeFile:
			node := fs.Img.Nodes[e.Inode]
			data := fs.Img.Blocks[node.Blocks[0]].DataBytes(node.FileSize)
			if err := os.WriteFile(target, data, 0644); err != nil {
				return err
			}
		}
	}
	return nil
}
