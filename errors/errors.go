// Package errors defines the domain-level error kinds used throughout extfs.
//
// Every operation that can fail returns one of the sentinel ExtfsError values
// below, optionally decorated with a message or a wrapped cause, so callers
// can compare with errors.Is instead of matching on message text.
package errors

import "fmt"

// FSError is the interface every error returned from extfs satisfies.
type FSError interface {
	error
	WithMessage(message string) FSError
	Wrap(err error) FSError
	Unwrap() error
}

// ExtfsError is a sentinel error kind. The zero value of the underlying
// string is never used; each kind is declared as a const below.
type ExtfsError string

func (e ExtfsError) Error() string {
	return string(e)
}

func (e ExtfsError) WithMessage(message string) FSError {
	return &wrappedError{kind: e, message: fmt.Sprintf("%s: %s", string(e), message)}
}

func (e ExtfsError) Wrap(err error) FSError {
	return &wrappedError{kind: e, message: fmt.Sprintf("%s: %s", string(e), err.Error()), cause: err}
}

// wrappedError decorates an ExtfsError with a message and/or an underlying
// cause while still answering true to errors.Is(err, theOriginalKind).
type wrappedError struct {
	kind    ExtfsError
	message string
	cause   error
}

func (e *wrappedError) Error() string {
	return e.message
}

func (e *wrappedError) WithMessage(message string) FSError {
	return &wrappedError{kind: e.kind, message: fmt.Sprintf("%s: %s", e.message, message), cause: e}
}

func (e *wrappedError) Wrap(err error) FSError {
	return &wrappedError{kind: e.kind, message: fmt.Sprintf("%s: %s", e.message, err.Error()), cause: err}
}

// Unwrap exposes the original cause (if any) and, failing that, the sentinel
// kind. Together with Is, this makes errors.Is(err, ErrNotFound) work through
// any number of layers of WithMessage/Wrap.
func (e *wrappedError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.kind
}

// Is matches the sentinel kind directly, since Unwrap yields the wrapped
// cause instead of the kind once Wrap has set one.
func (e *wrappedError) Is(target error) bool {
	return target == error(e.kind)
}

func (e ExtfsError) Unwrap() error {
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Capacity (spec.md §7 "Capacity")

const ErrNoFreeInode = ExtfsError("no free inode")
const ErrNoFreeBlock = ExtfsError("no free block")

////////////////////////////////////////////////////////////////////////////////
// Lookup

const ErrNotFound = ExtfsError("path not found")
const ErrAlreadyAtRoot = ExtfsError("already at root")

////////////////////////////////////////////////////////////////////////////////
// Name validation

const ErrNameEmpty = ExtfsError("name cannot be empty")
const ErrNameTooLong = ExtfsError("name length exceeds limit")
const ErrNameInvalidChar = ExtfsError("name cannot contain invalid char")
const ErrNameDotOrDotDot = ExtfsError(`name cannot be "." or ".."`)
const ErrNameOccupied = ExtfsError("name already occupied")

////////////////////////////////////////////////////////////////////////////////
// Mode mismatch

const ErrNotADirectory = ExtfsError("not a directory")
const ErrIsADirectory = ExtfsError("is a directory")
const ErrPathCannotBeEmpty = ExtfsError("path cannot be empty")
const ErrCannotMkdirRoot = ExtfsError("cannot mkdir root")
const ErrUseRmdirForDirectories = ExtfsError("use rmdir to remove a directory")

////////////////////////////////////////////////////////////////////////////////
// I/O / version

const ErrIOFailed = ExtfsError("input/output error")
const ErrVersionMismatch = ExtfsError("disk version mismatch")

////////////////////////////////////////////////////////////////////////////////
// Syntax (shell, out of core scope but still surfaced through this package)

const ErrQuotesUnbalanced = ExtfsError("quotes not balanced")
const ErrMissingArgument = ExtfsError("missing argument")
