package vfskit

import "time"

// FSType tags the engine family behind a drive.
type FSType uint8

const (
	TypeRoot FSType = iota
	TypeFAT
	TypeLFS
	TypeFlat
)

func (t FSType) String() string {
	switch t {
	case TypeFAT:
		return "FAT"
	case TypeLFS:
		return "LFS"
	case TypeFlat:
		return "JESFS"
	default:
		return "ROOT"
	}
}

// PathStyle tells the dispatcher how a backend expects paths.
type PathStyle uint8

const (
	// FullPath backends take the drive-prefixed path unchanged.
	FullPath PathStyle = iota
	// RelativePath backends take the path with the drive prefix and
	// leading separators removed.
	RelativePath
)

// Usage describes volume capacity in bytes.
type Usage struct {
	Total     int64
	Free      int64
	BlockSize int64
}

// Used returns Total minus Free.
func (u Usage) Used() int64 {
	return u.Total - u.Free
}

// Backend is the engine driver of one drive. It is selected when the drive
// is constructed and produces a Volume on every successful mount.
type Backend interface {
	Type() FSType
	PathStyle() PathStyle
	// Mount attaches the medium. fixed requests an immediate full check.
	Mount(prefix string, fixed bool) (Volume, error)
	// Format writes an empty filesystem. The drive is unmounted while
	// Format runs.
	Format(prefix string) error
}

// Volume is the handle of a mounted drive. Names are already fixed up
// according to the backend's PathStyle and never denote the drive root
// for file operations.
type Volume interface {
	// Open opens a file. existed reports whether the file was present
	// before the call when OpenCreate is requested.
	Open(name string, flags OpenFlag, existed bool) (BackendFile, error)
	OpenDir(name string) (BackendDir, error)
	Stat(name string) (Info, error)
	Mkdir(name string) error
	Remove(name string) error
	Rename(oldName, newName string) error
	// Touch applies the times and the hidden/system attributes of info.
	Touch(name string, info Info) error
	Usage() (Usage, error)
	// Created returns the volume creation time, zero when unknown.
	Created() time.Time
	Label() (string, error)
	SetLabel(label string) error
	// Locked reports whether the engine's volume lock is currently held.
	Locked() bool
	Unmount() error
}

// BackendFile is an open backend file. Read returns 0 with a nil error at
// end of file.
type BackendFile interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Seek moves to an absolute offset.
	Seek(offset int64) error
	Tell() int64
	Size() int64
	Sync() error
	Truncate(size int64) error
	Close() error
}

// BackendDir is a directory cursor. Next returns io.EOF when exhausted.
// The Inode field of returned entries holds the backend item index.
type BackendDir interface {
	Next() (Info, error)
	Close() error
}

// modTimeSetter is implemented by files of backends that do not track the
// modification time themselves. The dispatcher pushes its own stamp before
// sync and close.
type modTimeSetter interface {
	SetModTime(t time.Time)
}
