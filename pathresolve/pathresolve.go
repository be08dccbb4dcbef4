// Package pathresolve implements the path resolver described in spec.md
// §4.2: translating a textual path into an inode id while maintaining a
// scratch ancestor stack that mirrors the traversal but does not commit to
// the working-directory state until the caller chooses to.
package pathresolve

import (
	"strings"

	"github.com/kjorund/extfs/dirent"
	"github.com/kjorund/extfs/errors"
	"github.com/kjorund/extfs/image"
)

// Result is the outcome of a successful Resolve: the inode the path refers
// to, and the full scratch ancestor stack (root through the resolved
// inode, inclusive) that produced it.
type Result struct {
	Inode uint16
	Stack []uint16
}

// Depth is the number of steps below root the resolved inode sits, i.e.
// len(Stack)-1.
func (r Result) Depth() int {
	return len(r.Stack) - 1
}

// Resolve translates path into an inode, given the current working
// directory's stack (root through cwd inclusive). It never mutates
// curStack; on success the caller copies Result.Stack in as the new
// committed state if the operation calls for that (e.g. cd), and on
// failure the committed state is untouched by construction since nothing
// was written to it.
//
// An empty path resolves to the current directory unchanged. A leading '/'
// starts from root. Components are split on '/', with empty components and
// "." ignored. ".." walks up the scratch stack, failing with
// ErrAlreadyAtRoot if already at depth 0. Any other component is looked up
// via dirent.Lookup in the directory rooted at the current scratch inode;
// a miss fails with ErrNotFound. The final component's inode may be a file;
// callers that require a directory must check its Mode afterward.
func Resolve(img *image.Image, curStack []uint16, path string) (Result, errors.FSError) {
	stack := make([]uint16, len(curStack))
	copy(stack, curStack)

	if path == "" {
		return Result{Inode: stack[len(stack)-1], Stack: stack}, nil
	}

	if strings.HasPrefix(path, "/") {
		stack = stack[:1]
	}

	curInode := stack[len(stack)-1]

	for _, component := range strings.Split(path, "/") {
		switch component {
		case "", ".":
			continue
		case "..":
			if len(stack) == 1 {
				return Result{}, errors.ErrAlreadyAtRoot
			}
			stack = stack[:len(stack)-1]
			curInode = stack[len(stack)-1]
		default:
			found, err := dirent.Lookup(img, curInode, component)
			if err != nil {
				return Result{}, errors.ErrNotFound
			}
			curInode = found
			stack = append(stack, curInode)
		}
	}

	return Result{Inode: curInode, Stack: stack}, nil
}

// SplitParentAndName splits a path into its parent directory path and its
// final component, the way split_path() does in the C original: the last
// '/' separates them, a path with no '/' is entirely a name with an empty
// (i.e. "use current directory") parent, and a path starting with '/' and
// containing no other '/' has parent "/".
func SplitParentAndName(path string) (parent, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	if idx == 0 {
		return "/", path[1:]
	}
	return path[:idx], path[idx+1:]
}
