package vfskit

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenFlag selects the access mode and creation behavior of Open.
type OpenFlag uint16

const (
	OpenRead      OpenFlag = 0x01
	OpenWrite     OpenFlag = 0x02
	OpenReadWrite          = OpenRead | OpenWrite
	OpenCreate    OpenFlag = 0x10
	OpenExclusive OpenFlag = 0x20 // with OpenCreate: fail when the file exists
	OpenTruncate  OpenFlag = 0x40
	OpenAppend    OpenFlag = 0x80 // position at the end after opening
)

// mutating reports whether the flags can change the file.
func (f OpenFlag) mutating() bool {
	return f&(OpenWrite|OpenCreate|OpenTruncate|OpenAppend) != 0
}

func (f OpenFlag) String() string {
	var parts []string
	for _, x := range []struct {
		bit  OpenFlag
		name string
	}{
		{OpenRead, "read"},
		{OpenWrite, "write"},
		{OpenCreate, "create"},
		{OpenExclusive, "excl"},
		{OpenTruncate, "trunc"},
		{OpenAppend, "append"},
	} {
		if f&x.bit != 0 {
			parts = append(parts, x.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

type handleState uint8

const (
	stateOpen handleState = iota + 1
	stateClosed
)

// File is an open file on one drive.
type File struct {
	reg      *Registry
	drive    *Drive
	bf       BackendFile
	path     string
	flags    OpenFlag
	state    handleState
	modified time.Time
	created  bool
	written  bool
}

// Open opens the file at path. A failed Open returns a nil *File.
func (r *Registry) Open(path string, flags OpenFlag) (*File, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		return nil, pathErr("open", path, err)
	}
	if flags&OpenReadWrite == 0 {
		return nil, pathErr("open", path, ErrInvalid)
	}
	if d.isRoot(path) {
		return nil, pathErr("open", path, ErrIsDir)
	}
	if d.readOnly && flags.mutating() {
		return nil, pathErr("open", path, ErrReadOnly)
	}

	name := d.fix(path)
	existed := false
	if flags&OpenCreate != 0 {
		_, serr := d.vol.Stat(name)
		existed = serr == nil
		if existed && flags&OpenExclusive != 0 {
			r.metrics.ObserveOp(d.prefix, "open", ErrExist)
			return nil, pathErr("open", path, ErrExist)
		}
	}

	bf, err := d.vol.Open(name, flags, existed)
	r.metrics.ObserveOp(d.prefix, "open", err)
	if err != nil {
		return nil, pathErr("open", path, err)
	}
	f := &File{
		reg:      r,
		drive:    d,
		bf:       bf,
		path:     path,
		flags:    flags,
		state:    stateOpen,
		modified: r.now(),
		created:  flags&OpenCreate != 0 && !existed,
		written:  flags&OpenTruncate != 0 && existed,
	}
	if flags&OpenAppend != 0 {
		if err := bf.Seek(bf.Size()); err != nil {
			_ = bf.Close()
			return nil, pathErr("open", path, err)
		}
	}
	r.log.WithFields(logrus.Fields{"drive": d.prefix, "flags": flags.String()}).
		Debugf("[VFS] Open %s", path)
	return f, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	return f.path
}

// Drive returns the drive of an open file, nil once closed.
func (f *File) Drive() *Drive {
	if f == nil {
		return nil
	}
	return f.drive
}

func (f *File) check(op string) error {
	if f == nil || f.state != stateOpen {
		return pathErr(op, "", ErrBadHandle)
	}
	if !f.drive.Mounted() {
		return pathErr(op, f.path, ErrNotMounted)
	}
	return nil
}

// Read reads up to len(p) bytes. It returns io.EOF at end of file.
func (f *File) Read(p []byte) (int, error) {
	if err := f.check("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.bf.Read(p)
	f.reg.metrics.AddBytes(f.drive.prefix, "read", n)
	if err != nil {
		return n, pathErr("read", f.path, err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes p. Storing fewer bytes than requested fails with ErrNoSpace.
func (f *File) Write(p []byte) (int, error) {
	if err := f.check("write"); err != nil {
		return 0, err
	}
	n, err := f.bf.Write(p)
	f.reg.metrics.AddBytes(f.drive.prefix, "write", n)
	if n > 0 {
		f.touched()
	}
	if err == nil && n < len(p) {
		err = ErrNoSpace
	}
	return n, pathErr("write", f.path, err)
}

func (f *File) touched() {
	f.written = true
	f.modified = f.reg.now()
}

// Seek sets the file position.
//
// io.SeekEnd resolves to size+1+offset, so Seek(-1, io.SeekEnd) lands on
// the end of the file. When the backend cannot place the position where
// asked (a FAT volume out of clusters, a read-only handle past the end)
// Seek fails with ErrNoSpace.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.check("seek"); err != nil {
		return 0, err
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.bf.Tell() + offset
	case io.SeekEnd:
		target = f.bf.Size() + 1 + offset
	default:
		return 0, pathErr("seek", f.path, ErrInvalid)
	}
	if target < 0 {
		return 0, pathErr("seek", f.path, ErrInvalid)
	}

	size := f.bf.Size()
	if err := f.bf.Seek(target); err != nil {
		return f.bf.Tell(), pathErr("seek", f.path, err)
	}
	if f.bf.Size() != size {
		f.touched()
	}
	if pos := f.bf.Tell(); pos != target {
		return pos, pathErr("seek", f.path, ErrNoSpace)
	}
	return target, nil
}

// Tell returns the file position, -1 for a closed handle.
func (f *File) Tell() int64 {
	if f.check("tell") != nil {
		return -1
	}
	return f.bf.Tell()
}

// Size returns the file size, -1 for a closed handle.
func (f *File) Size() int64 {
	if f.check("size") != nil {
		return -1
	}
	return f.bf.Size()
}

// EOF reports whether the position is at or past the end of the file.
func (f *File) EOF() bool {
	if f.check("eof") != nil {
		return true
	}
	return f.bf.Tell() >= f.bf.Size()
}

// Rewind moves to the start of the file.
func (f *File) Rewind() error {
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// Sync flushes the backend caches.
func (f *File) Sync() error {
	if err := f.check("sync"); err != nil {
		return err
	}
	f.pushModTime()
	err := f.bf.Sync()
	f.reg.metrics.ObserveOp(f.drive.prefix, "sync", err)
	return pathErr("sync", f.path, err)
}

// Truncate sets the file size.
func (f *File) Truncate(size int64) error {
	if err := f.check("truncate"); err != nil {
		return err
	}
	if size < 0 {
		return pathErr("truncate", f.path, ErrInvalid)
	}
	err := f.bf.Truncate(size)
	f.reg.metrics.ObserveOp(f.drive.prefix, "truncate", err)
	if err != nil {
		return pathErr("truncate", f.path, err)
	}
	f.touched()
	return nil
}

// ReadByte reads one byte.
func (f *File) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := f.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Gets reads a line of at most max-1 bytes. The newline is consumed but
// not returned. io.EOF is returned only when nothing was read.
func (f *File) Gets(max int) (string, error) {
	if max < 2 {
		return "", pathErr("gets", f.path, ErrInvalid)
	}
	var sb strings.Builder
	for sb.Len() < max-1 {
		c, err := f.ReadByte()
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", io.EOF
			}
			break
		}
		if err != nil {
			return sb.String(), err
		}
		if c == '\n' {
			break
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

// WriteByte writes one byte.
func (f *File) WriteByte(c byte) error {
	_, err := f.Write([]byte{c})
	return err
}

// WriteString writes s.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Printf writes formatted output.
func (f *File) Printf(format string, args ...any) (int, error) {
	return f.WriteString(fmt.Sprintf(format, args...))
}

func (f *File) pushModTime() {
	if !f.written {
		return
	}
	if ms, ok := f.bf.(modTimeSetter); ok {
		ms.SetModTime(f.modified)
	}
}

// Close releases the handle. Closing a closed handle returns nil. The
// handle is closed even when the backend reports an error.
func (f *File) Close() error {
	if f == nil || f.state != stateOpen {
		return nil
	}
	d := f.drive
	var err error
	if d.Mounted() {
		f.pushModTime()
		err = f.bf.Close()
	} else {
		err = ErrNotMounted
	}
	f.state = stateClosed
	f.drive = nil
	f.reg.metrics.ObserveOp(d.prefix, "close", err)
	if err != nil {
		return pathErr("close", f.path, err)
	}

	switch {
	case f.created:
		f.reg.notify(ChangeAdded, d, f.path)
	case f.written:
		f.reg.notify(ChangeChanged, d, f.path)
	}
	return nil
}
