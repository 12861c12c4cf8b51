package vfskit

import (
	"io/fs"
	"time"
)

// MaxName bounds Info.Name in bytes.
const MaxName = 255

// Attr is the unified attribute bitset.
type Attr uint16

const (
	AttrRead      Attr = 0x001
	AttrWrite     Attr = 0x002
	AttrExec      Attr = 0x004
	AttrHidden    Attr = 0x008
	AttrSystem    Attr = 0x010
	AttrRegular   Attr = 0x040
	AttrDir       Attr = 0x080
	AttrRemovable Attr = 0x100 // synthesized for removable volumes
	AttrFlat      Attr = 0x200 // synthesized for flat filesystems
)

// String renders the bitset in the style of a directory listing.
func (a Attr) String() string {
	b := []byte("--------")
	set := func(i int, bit Attr, c byte) {
		if a&bit != 0 {
			b[i] = c
		}
	}
	set(0, AttrDir, 'd')
	set(1, AttrRead, 'r')
	set(2, AttrWrite, 'w')
	set(3, AttrExec, 'x')
	set(4, AttrHidden, 'h')
	set(5, AttrSystem, 's')
	set(6, AttrRemovable, 'R')
	set(7, AttrFlat, 'F')
	return string(b)
}

// Info is the unified metadata record returned by Stat and directory
// reads. A zero Created or Modified means the backend does not know.
type Info struct {
	Name      string
	Size      int64
	Created   time.Time
	Modified  time.Time
	Attr      Attr
	Drive     int
	Inode     uint32
	Blocks    int64
	BlockSize int64
}

// IsDir reports whether the entry is a directory.
func (i Info) IsDir() bool {
	return i.Attr&AttrDir != 0
}

// Mode converts the attributes to an fs.FileMode.
func (i Info) Mode() fs.FileMode {
	var m fs.FileMode
	if i.Attr&AttrRead != 0 {
		m |= 0o444
	}
	if i.Attr&AttrWrite != 0 {
		m |= 0o222
	}
	if i.Attr&AttrExec != 0 || i.IsDir() {
		m |= 0o111
	}
	if i.IsDir() {
		m |= fs.ModeDir
	}
	return m
}

func boundName(name string) string {
	if len(name) > MaxName {
		return name[:MaxName]
	}
	return name
}

// blocksFor returns the number of blocks of size bs holding n bytes.
func blocksFor(n, bs int64) int64 {
	if bs <= 0 || n <= 0 {
		return 0
	}
	return (n + bs - 1) / bs
}
