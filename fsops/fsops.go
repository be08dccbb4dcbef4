// Package fsops implements the user-visible operations described in
// spec.md §4.4: cd, ls, mkdir, rmdir, echo, cat, rm, pwd, fmt, and the
// diagnostic dmp/DumpCSV/Fsck extensions, all built atop image, alloc,
// dirent, and pathresolve.
package fsops

import (
	"fmt"
	"strings"

	"github.com/kjorund/extfs/alloc"
	"github.com/kjorund/extfs/dirent"
	"github.com/kjorund/extfs/errors"
	"github.com/kjorund/extfs/image"
	"github.com/kjorund/extfs/pathresolve"
)

// FS owns the in-memory Image, its Allocator, and the working-directory
// stack (root through cwd inclusive), mirroring the C original's
// dir_inodes/cur_depth globals as a single owning value.
type FS struct {
	Img   *image.Image
	Alloc *alloc.Allocator

	stack []uint16
}

// New builds an FS around a freshly formatted Image.
func New() *FS {
	fs := &FS{}
	fs.Fmt()
	return fs
}

// Open builds an FS around an already-populated Image (e.g. returned by
// persistence.Load), resyncing the allocator's shadow index and resetting
// the working directory to root. Root is always inode 0: it is the first
// inode any format ever allocates, and rmdir only ever removes it by
// triggering a full reformat, so its index never changes across a load.
func Open(img *image.Image) *FS {
	return &FS{
		Img:   img,
		Alloc: alloc.New(img),
		stack: []uint16{0},
	}
}

// Fmt zeroes the image, allocates a fresh root directory, and resets the
// working directory to root (spec.md §4.4 "fmt").
func (fs *FS) Fmt() {
	fs.Img = image.New()
	fs.Alloc = alloc.New(fs.Img)
	root, err := fs.Alloc.Allocate(image.ModeDirectory, image.BlockDirEntry)
	if err != nil {
		panic("fsops: fresh image cannot allocate root directory: " + err.Error())
	}
	fs.stack = []uint16{root}
}

// RootInode returns the inode id of the filesystem's root directory, the
// bottom entry of the working-directory stack.
func (fs *FS) RootInode() uint16 {
	return fs.stack[0]
}

// Pwd renders the working-directory stack as a slash-separated path, by
// looking up, for each adjacent (parent, child) pair, the name under which
// child is registered in parent's chain.
func (fs *FS) Pwd() string {
	if len(fs.stack) == 1 {
		return "/"
	}

	var b strings.Builder
	for i := 0; i < len(fs.stack)-1; i++ {
		parent, child := fs.stack[i], fs.stack[i+1]
		b.WriteByte('/')
		for _, e := range dirent.Iterate(fs.Img, parent) {
			if e.Inode == child {
				b.WriteString(e.Name)
				break
			}
		}
	}
	return b.String()
}

// Cd resolves path and, if it names a directory, commits the resolved
// stack as the new working directory.
func (fs *FS) Cd(path string) errors.FSError {
	if path == "" {
		return errors.ErrPathCannotBeEmpty
	}

	res, err := pathresolve.Resolve(fs.Img, fs.stack, path)
	if err != nil {
		return err
	}
	if fs.Img.Nodes[res.Inode].Mode != image.ModeDirectory {
		return errors.ErrNotADirectory
	}

	fs.stack = res.Stack
	return nil
}

// DirListing is one line of Ls output.
type DirListing struct {
	Name  string
	IsDir bool
}

// Ls resolves path (or the working directory if empty) and lists its
// contents. If the resolved inode is a file, it reports the single name
// it was found under in its parent (matching the C original's quirky
// ls-of-a-file behavior: it reprints the name it was looked up by).
func (fs *FS) Ls(path string) ([]DirListing, errors.FSError) {
	res, err := pathresolve.Resolve(fs.Img, fs.stack, path)
	if err != nil {
		return nil, err
	}

	if fs.Img.Nodes[res.Inode].Mode == image.ModeFile {
		parent := res.Stack[len(res.Stack)-2]
		for _, e := range dirent.Iterate(fs.Img, parent) {
			if e.Inode == res.Inode {
				return []DirListing{{Name: e.Name, IsDir: false}}, nil
			}
		}
		return nil, nil
	}

	var out []DirListing
	if res.Depth() > 0 {
		out = append(out, DirListing{Name: "..", IsDir: true})
	}
	out = append(out, DirListing{Name: ".", IsDir: true})

	for _, e := range dirent.Iterate(fs.Img, res.Inode) {
		out = append(out, DirListing{Name: e.Name, IsDir: e.Mode == image.ModeDirectory})
	}
	return out, nil
}

// Mkdir creates a new, empty directory at path.
func (fs *FS) Mkdir(path string) errors.FSError {
	if path == "" {
		return errors.ErrPathCannotBeEmpty
	}
	if path == "/" {
		return errors.ErrCannotMkdirRoot
	}

	path = strings.TrimRight(path, "/")
	parentPath, name := pathresolve.SplitParentAndName(path)

	res, err := pathresolve.Resolve(fs.Img, fs.stack, parentPath)
	if err != nil {
		return err
	}
	if fs.Img.Nodes[res.Inode].Mode != image.ModeDirectory {
		return errors.ErrNotADirectory
	}

	newInode, allocErr := fs.Alloc.Allocate(image.ModeDirectory, image.BlockDirEntry)
	if allocErr != nil {
		return allocErr
	}
	if insErr := dirent.Insert(fs.Img, fs.Alloc, res.Inode, name, newInode); insErr != nil {
		fs.Alloc.Release(newInode)
		return insErr
	}
	return nil
}

// Rmdir removes the directory at path. If path resolves to root, the
// entire image is reformatted instead (spec.md §4.4/§9). Otherwise the
// target's subtree is recursively torn down, released, and unlinked from
// its parent; if deletion invalidated any inode on the working-directory
// stack, the stack is trimmed to the lowest surviving ancestor.
func (fs *FS) Rmdir(path string) errors.FSError {
	res, err := pathresolve.Resolve(fs.Img, fs.stack, path)
	if err != nil {
		return err
	}

	if res.Inode == fs.stack[0] {
		fs.Fmt()
		return nil
	}
	if fs.Img.Nodes[res.Inode].Mode != image.ModeDirectory {
		return errors.ErrNotADirectory
	}

	parent := res.Stack[len(res.Stack)-2]
	parentName := findOwningName(fs.Img, parent, res.Inode)
	if parentName == "" {
		return errors.ErrNotFound
	}

	dirent.Teardown(fs.Img, fs.Alloc, res.Inode)
	if remErr := dirent.Remove(fs.Img, fs.Alloc, parent, parentName); remErr != nil {
		return remErr
	}
	for cur := res.Inode; cur != image.Invalid; {
		next := fs.Img.Nodes[cur].NextInode
		fs.Alloc.Release(cur)
		cur = next
	}

	for len(fs.stack) > 1 && fs.Img.Super.InodeBitmap[fs.stack[len(fs.stack)-1]] == 0 {
		fs.stack = fs.stack[:len(fs.stack)-1]
	}
	return nil
}

// Echo writes str into a newly created file at path.
func (fs *FS) Echo(str, path string) errors.FSError {
	if path == "" {
		return errors.ErrPathCannotBeEmpty
	}

	parentPath, name := pathresolve.SplitParentAndName(path)

	res, err := pathresolve.Resolve(fs.Img, fs.stack, parentPath)
	if err != nil {
		return err
	}
	if fs.Img.Nodes[res.Inode].Mode != image.ModeDirectory {
		return errors.ErrNotADirectory
	}

	newInode, allocErr := fs.Alloc.Allocate(image.ModeFile, image.BlockData)
	if allocErr != nil {
		return allocErr
	}

	node := &fs.Img.Nodes[newInode]
	node.FileSize = uint32(len(str))
	fs.Img.Blocks[node.Blocks[0]].SetData([]byte(str))

	if insErr := dirent.Insert(fs.Img, fs.Alloc, res.Inode, name, newInode); insErr != nil {
		fs.Alloc.Release(newInode)
		return insErr
	}
	return nil
}

// Cat returns the contents of the file at path.
func (fs *FS) Cat(path string) (string, errors.FSError) {
	parentPath, name := pathresolve.SplitParentAndName(path)

	res, err := pathresolve.Resolve(fs.Img, fs.stack, parentPath)
	if err != nil {
		return "", err
	}
	if fs.Img.Nodes[res.Inode].Mode != image.ModeDirectory {
		return "", errors.ErrNotADirectory
	}

	target, lerr := dirent.Lookup(fs.Img, res.Inode, name)
	if lerr != nil {
		return "", errors.ErrNotFound
	}
	node := &fs.Img.Nodes[target]
	if node.Mode != image.ModeFile {
		return "", errors.ErrIsADirectory
	}

	return string(fs.Img.Blocks[node.Blocks[0]].DataBytes(node.FileSize)), nil
}

// Rm removes the file at path.
func (fs *FS) Rm(path string) errors.FSError {
	if strings.HasSuffix(path, "/") {
		return errors.ErrUseRmdirForDirectories
	}

	parentPath, name := pathresolve.SplitParentAndName(path)

	res, err := pathresolve.Resolve(fs.Img, fs.stack, parentPath)
	if err != nil {
		return err
	}
	if fs.Img.Nodes[res.Inode].Mode != image.ModeDirectory {
		return errors.ErrNotADirectory
	}

	target, lerr := dirent.Lookup(fs.Img, res.Inode, name)
	if lerr != nil {
		return errors.ErrNotFound
	}
	if fs.Img.Nodes[target].Mode != image.ModeFile {
		return errors.ErrUseRmdirForDirectories
	}

	if remErr := dirent.Remove(fs.Img, fs.Alloc, res.Inode, name); remErr != nil {
		return remErr
	}
	fs.Alloc.Release(target)
	return nil
}

// findOwningName returns the name under which childInode is registered in
// parentInode's chain, or "" if not found.
func findOwningName(img *image.Image, parentInode, childInode uint16) string {
	for _, e := range dirent.Iterate(img, parentInode) {
		if e.Inode == childInode {
			return e.Name
		}
	}
	return ""
}

// InodeReport is one row of Dmp's diagnostic output.
type InodeReport struct {
	Inode     uint16
	Mode      uint32
	Block     uint32
	NextInode uint16
	Entries   []dirent.Entity
	FileSize  uint32
}

// Dmp walks every allocated inode and reports its mode, owned block, and next
// link, mirroring dump_inode() in the original. A directory head's report
// carries the entries of its whole chain; continuation inodes are reported
// without entries.
func (fs *FS) Dmp() []InodeReport {
	var out []InodeReport
	for i := 0; i < image.MaxInode; i++ {
		if fs.Img.Super.InodeBitmap[i] == 0 {
			continue
		}
		node := fs.Img.Nodes[i]
		rep := InodeReport{
			Inode:     uint16(i),
			Mode:      node.Mode,
			Block:     node.Blocks[0],
			NextInode: node.NextInode,
			FileSize:  node.FileSize,
		}
		if node.Mode == image.ModeDirectory {
			rep.Entries = dirent.Iterate(fs.Img, uint16(i))
		}
		out = append(out, rep)
	}
	return out
}

// Fsck runs the image's invariant checker, including the current
// working-directory stack, and returns any violations found, aggregated via
// hashicorp/go-multierror inside image.CheckInvariants.
func (fs *FS) Fsck() error {
	return fs.Img.CheckInvariants(fs.stack)
}

// String renders an InodeReport the way dump_inode prints it, for CLI use.
func (r InodeReport) String() string {
	switch r.Mode {
	case image.ModeDirectory:
		return fmt.Sprintf("Inode #%d: dir, block #%d, next=%d, entries=%d", r.Inode, r.Block, r.NextInode, len(r.Entries))
	case image.ModeContinuation:
		return fmt.Sprintf("Inode #%d: cont, block #%d, next=%d", r.Inode, r.Block, r.NextInode)
	case image.ModeFile:
		return fmt.Sprintf("Inode #%d: file, block #%d, size=%d", r.Inode, r.Block, r.FileSize)
	default:
		return fmt.Sprintf("Inode #%d: unknown mode %d", r.Inode, r.Mode)
	}
}
