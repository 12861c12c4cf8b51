package vfskit

import (
	"errors"
	"fmt"
)

// Common filesystem errors. Every backend status is normalized onto one of
// these.
var (
	ErrIO           = errors.New("input/output error")
	ErrPermission   = errors.New("permission denied")
	ErrNotExist     = errors.New("file does not exist")
	ErrNotDir       = errors.New("not a directory")
	ErrInvalid      = errors.New("invalid argument")
	ErrExist        = errors.New("file already exists")
	ErrBadHandle    = errors.New("bad file handle")
	ErrReadOnly     = errors.New("filesystem is read-only")
	ErrNoDevice     = errors.New("no such drive")
	ErrNotMounted   = errors.New("drive not mounted")
	ErrNoFilesystem = errors.New("no filesystem on drive")
	ErrTimeout      = errors.New("operation timed out")
	ErrLocked       = errors.New("file is locked")
	ErrNoMemory     = errors.New("out of memory")
	ErrTooManyOpen  = errors.New("too many open files")
	ErrInternal     = errors.New("backend assertion failed")
	ErrIsDir        = errors.New("is a directory")
	ErrNotEmpty     = errors.New("directory not empty")
	ErrNoSpace      = errors.New("no space left on device")
	ErrBusy         = errors.New("device or resource busy")
	ErrNotSupported = errors.New("operation not supported")
)

// Kind classifies a normalized error.
type Kind int

const (
	KindNone Kind = iota
	KindIO
	KindPermission
	KindNotFound
	KindNotDir
	KindInvalid
	KindExist
	KindBadHandle
	KindReadOnly
	KindNoDevice
	KindNotMounted
	KindNoFilesystem
	KindTimeout
	KindLocked
	KindNoMemory
	KindTooManyOpen
	KindInternal
	KindIsDir
	KindNotEmpty
	KindNoSpace
	KindBusy
	KindNotSupported
)

var kindErrors = []struct {
	kind Kind
	err  error
}{
	{KindIO, ErrIO},
	{KindPermission, ErrPermission},
	{KindNotFound, ErrNotExist},
	{KindNotDir, ErrNotDir},
	{KindInvalid, ErrInvalid},
	{KindExist, ErrExist},
	{KindBadHandle, ErrBadHandle},
	{KindReadOnly, ErrReadOnly},
	{KindNoDevice, ErrNoDevice},
	{KindNotMounted, ErrNotMounted},
	{KindNoFilesystem, ErrNoFilesystem},
	{KindTimeout, ErrTimeout},
	{KindLocked, ErrLocked},
	{KindNoMemory, ErrNoMemory},
	{KindTooManyOpen, ErrTooManyOpen},
	{KindInternal, ErrInternal},
	{KindIsDir, ErrIsDir},
	{KindNotEmpty, ErrNotEmpty},
	{KindNoSpace, ErrNoSpace},
	{KindBusy, ErrBusy},
	{KindNotSupported, ErrNotSupported},
}

// KindOf returns the kind of a normalized error. Errors that carry no
// sentinel report KindIO; nil reports KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, ke := range kindErrors {
		if errors.Is(err, ke.err) {
			return ke.kind
		}
	}
	return KindIO
}

// String returns the sentinel message of the kind.
func (k Kind) String() string {
	for _, ke := range kindErrors {
		if ke.kind == k {
			return ke.err.Error()
		}
	}
	return "ok"
}

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// BackendError keeps the raw engine status next to the normalized error.
type BackendError struct {
	Backend string
	Code    int
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s status %d: %v", e.Backend, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission) || errors.Is(err, ErrReadOnly)
}

func pathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}
