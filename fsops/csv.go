package fsops

import (
	"github.com/gocarina/gocsv"

	"github.com/kjorund/extfs/image"
)

// inodeRow is the CSV-serializable projection of one allocated inode, used
// by DumpCSV for exporting a snapshot of the allocation table for offline
// inspection (the same role disk-geometries.csv plays for the teacher's
// predefined disk table, but generated from live data rather than embedded).
type inodeRow struct {
	Inode      uint16 `csv:"inode"`
	Mode       uint32 `csv:"mode"`
	Block      uint32 `csv:"block"`
	EntryCount uint16 `csv:"entry_count"`
	NextInode  uint16 `csv:"next_inode"`
	FileSize   uint32 `csv:"file_size"`
}

// DumpCSV renders every allocated inode as a CSV table, one row per inode.
func (fs *FS) DumpCSV() (string, error) {
	rows := make([]*inodeRow, 0, image.MaxInode)
	for i := 0; i < image.MaxInode; i++ {
		if fs.Img.Super.InodeBitmap[i] == 0 {
			continue
		}
		node := fs.Img.Nodes[i]
		rows = append(rows, &inodeRow{
			Inode:      uint16(i),
			Mode:       node.Mode,
			Block:      node.Blocks[0],
			EntryCount: node.EntryCount,
			NextInode:  node.NextInode,
			FileSize:   node.FileSize,
		})
	}
	return gocsv.MarshalString(&rows)
}
