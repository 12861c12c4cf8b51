// Package flatfs is a flat, sector indexed flash engine modelled on JesFS.
// There are no directories. The file index lives XDR encoded in sector 0 of
// the image and file data is appended to whole sectors.
package flatfs

import (
	"bytes"
	"sync"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const magic = 0x4A455346 // "JESF"

type record struct {
	Name    string
	Ctime   uint32
	Len     uint32
	Flags   uint32
	Sectors []uint32
}

type index struct {
	Magic uint32
	Files []record
}

// Device is a raw flash image.
type Device struct {
	mu         sync.Mutex
	image      []byte
	sectorSize int
	asleep     bool
}

// NewDevice returns an erased device.
func NewDevice(sectors, sectorSize int) *Device {
	if sectorSize <= 0 {
		sectorSize = 4096
	}
	if sectors < 2 {
		sectors = 2
	}
	return &Device{image: make([]byte, sectors*sectorSize), sectorSize: sectorSize}
}

// Image returns the backing bytes.
func (d *Device) Image() []byte {
	return d.image
}

// Wake leaves deep sleep without reading the index, e.g. before Format.
func (d *Device) Wake() {
	d.mu.Lock()
	d.asleep = false
	d.mu.Unlock()
}

func (d *Device) sectors() int {
	return len(d.image) / d.sectorSize
}

func (d *Device) sector(n uint32) []byte {
	off := int(n) * d.sectorSize
	return d.image[off : off+d.sectorSize]
}

// Desc is a file descriptor.
type Desc struct {
	Pos   uint32
	Len   uint32
	Ctime uint32

	fs    *FS
	slot  int
	flags int
}

// Stat describes an index slot.
type Stat struct {
	Name  string
	Len   uint32
	Ctime uint32
	Flags uint32
}

// FS is a started flash filesystem.
type FS struct {
	dev *Device
	idx index
	now func() time.Time
}

// Format erases the device and writes an empty index.
func Format(dev *Device) Code {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.asleep {
		return ErrSleeping
	}
	clear(dev.image)
	return writeIndex(dev, &index{Magic: magic})
}

func writeIndex(dev *Device, idx *index) Code {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, idx); err != nil {
		return ErrWrite
	}
	if buf.Len() > dev.sectorSize {
		return ErrIndexFull
	}
	s := dev.sector(0)
	clear(s)
	copy(s, buf.Bytes())
	return OK
}

// Start reads the index. now stamps new files; nil means time.Now.
func Start(dev *Device, now func() time.Time) (*FS, Code) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.asleep = false
	var idx index
	if _, err := xdr.Unmarshal(bytes.NewReader(dev.sector(0)), &idx); err != nil || idx.Magic != magic {
		return nil, ErrNotFormatted
	}
	if now == nil {
		now = time.Now
	}
	return &FS{dev: dev, idx: idx, now: now}, OK
}

// Sleep puts the device into deep sleep. Further calls fail until Start.
func (fs *FS) Sleep() Code {
	fs.dev.mu.Lock()
	fs.dev.asleep = true
	fs.dev.mu.Unlock()
	return OK
}

// Busy reports whether another caller currently holds the device.
func (fs *FS) Busy() bool {
	if fs.dev.mu.TryLock() {
		fs.dev.mu.Unlock()
		return false
	}
	return true
}

func (fs *FS) enter() (func(), Code) {
	fs.dev.mu.Lock()
	if fs.dev.asleep {
		fs.dev.mu.Unlock()
		return nil, ErrSleeping
	}
	return fs.dev.mu.Unlock, OK
}

func (fs *FS) find(name string) int {
	for i := range fs.idx.Files {
		r := &fs.idx.Files[i]
		if r.Flags&StatActive != 0 && r.Name == name {
			return i
		}
	}
	return -1
}

func (fs *FS) usedSectors() map[uint32]bool {
	used := map[uint32]bool{0: true}
	for _, r := range fs.idx.Files {
		if r.Flags&StatActive == 0 {
			continue
		}
		for _, s := range r.Sectors {
			used[s] = true
		}
	}
	return used
}

func (fs *FS) allocSector() (uint32, bool) {
	used := fs.usedSectors()
	for s := 1; s < fs.dev.sectors(); s++ {
		if !used[uint32(s)] {
			return uint32(s), true
		}
	}
	return 0, false
}

// retire marks a slot inactive and releases its sectors.
func (fs *FS) retire(slot int) {
	r := &fs.idx.Files[slot]
	r.Flags = StatInactive
	r.Sectors = nil
}

// Open opens name into d.
func (fs *FS) Open(d *Desc, name string, flags int) Code {
	if d == nil {
		return ErrIllegalParam
	}
	*d = Desc{}
	if name == "" || len(name) > FNameLen {
		return ErrIllegalName
	}
	leave, c := fs.enter()
	if c != OK {
		return c
	}
	defer leave()

	slot := fs.find(name)
	if flags&OpenCreate != 0 {
		if slot >= 0 {
			fs.retire(slot)
		}
		fs.idx.Files = append(fs.idx.Files, record{
			Name:  name,
			Ctime: uint32(fs.now().Unix()),
			Flags: StatActive | StatUnclosed,
		})
		slot = len(fs.idx.Files) - 1
		if c := writeIndex(fs.dev, &fs.idx); c != OK {
			fs.idx.Files = fs.idx.Files[:slot]
			return c
		}
		flags |= OpenWrite
	} else if slot < 0 {
		return ErrFileNotFound
	}

	r := fs.idx.Files[slot]
	*d = Desc{Len: r.Len, Ctime: r.Ctime, fs: fs, slot: slot, flags: flags}
	return OK
}

func (fs *FS) check(d *Desc) (*record, Code) {
	if d == nil || d.fs != fs {
		return nil, ErrDescInvalid
	}
	if d.slot >= len(fs.idx.Files) || fs.idx.Files[d.slot].Flags&StatActive == 0 {
		return nil, ErrBadIndex
	}
	return &fs.idx.Files[d.slot], OK
}

// Read copies data from d.Pos. It returns the number of bytes read; 0 at
// end of file.
func (fs *FS) Read(d *Desc, p []byte) (int, Code) {
	leave, c := fs.enter()
	if c != OK {
		return 0, c
	}
	defer leave()

	r, c := fs.check(d)
	if c != OK {
		return 0, c
	}
	ss := uint32(fs.dev.sectorSize)
	n := 0
	for n < len(p) && d.Pos < r.Len {
		s := fs.dev.sector(r.Sectors[d.Pos/ss])
		off := d.Pos % ss
		end := ss
		if rem := r.Len - (d.Pos - off); rem < end {
			end = rem
		}
		k := copy(p[n:], s[off:end])
		n += k
		d.Pos += uint32(k)
	}
	return n, OK
}

// Write appends p to the file. Data is always added at the end regardless
// of d.Pos. When the flash fills up the count written so far is returned
// with ErrFlashFull.
func (fs *FS) Write(d *Desc, p []byte) (int, Code) {
	leave, c := fs.enter()
	if c != OK {
		return 0, c
	}
	defer leave()

	r, c := fs.check(d)
	if c != OK {
		return 0, c
	}
	if d.flags&OpenWrite == 0 {
		return 0, ErrNotWritable
	}

	ss := uint32(fs.dev.sectorSize)
	n := 0
	for n < len(p) {
		off := r.Len % ss
		if off == 0 && r.Len/ss == uint32(len(r.Sectors)) {
			s, ok := fs.allocSector()
			if !ok {
				c = ErrFlashFull
				break
			}
			r.Sectors = append(r.Sectors, s)
		}
		k := copy(fs.dev.sector(r.Sectors[r.Len/ss])[off:], p[n:])
		n += k
		r.Len += uint32(k)
	}
	d.Len = r.Len
	d.Pos = r.Len
	if wc := writeIndex(fs.dev, &fs.idx); wc != OK {
		return n, wc
	}
	return n, c
}

// Close marks a written file as closed.
func (fs *FS) Close(d *Desc) Code {
	leave, c := fs.enter()
	if c != OK {
		return c
	}
	defer leave()

	r, c := fs.check(d)
	if c != OK {
		return c
	}
	if r.Flags&StatUnclosed != 0 {
		r.Flags &^= StatUnclosed
		if c := writeIndex(fs.dev, &fs.idx); c != OK {
			return c
		}
	}
	*d = Desc{}
	return OK
}

// Delete removes the file behind d.
func (fs *FS) Delete(d *Desc) Code {
	leave, c := fs.enter()
	if c != OK {
		return c
	}
	defer leave()

	if _, c := fs.check(d); c != OK {
		return c
	}
	fs.retire(d.slot)
	*d = Desc{}
	return writeIndex(fs.dev, &fs.idx)
}

// Rename gives the file behind oldDesc the name of newDesc. newDesc must
// have been opened with OpenCreate; its empty slot is discarded.
func (fs *FS) Rename(oldDesc, newDesc *Desc) Code {
	leave, c := fs.enter()
	if c != OK {
		return c
	}
	defer leave()

	src, c := fs.check(oldDesc)
	if c != OK {
		return c
	}
	dst, c := fs.check(newDesc)
	if c != OK {
		return c
	}
	if dst.Len != 0 || oldDesc.slot == newDesc.slot {
		return ErrIllegalParam
	}
	src.Name = dst.Name
	fs.retire(newDesc.slot)
	*oldDesc, *newDesc = Desc{}, Desc{}
	return writeIndex(fs.dev, &fs.idx)
}

// Info describes index slot fno. It returns the slot flags, or 0 when fno
// is past the last slot.
func (fs *FS) Info(st *Stat, fno int) Code {
	leave, c := fs.enter()
	if c != OK {
		return c
	}
	defer leave()

	if fno < 0 || st == nil {
		return ErrIllegalParam
	}
	if fno >= len(fs.idx.Files) {
		return 0
	}
	r := fs.idx.Files[fno]
	*st = Stat{Name: r.Name, Len: r.Len, Ctime: r.Ctime, Flags: r.Flags}
	return Code(r.Flags)
}

// DiskInfo returns the data capacity and the bytes held by live files, both
// in whole sectors.
func (fs *FS) DiskInfo() (total, used int64, c Code) {
	leave, c := fs.enter()
	if c != OK {
		return 0, 0, c
	}
	defer leave()

	ss := int64(fs.dev.sectorSize)
	total = int64(fs.dev.sectors()-1) * ss
	used = int64(len(fs.usedSectors())-1) * ss
	return total, used, OK
}

// SectorSize returns the erase unit size.
func (fs *FS) SectorSize() int64 {
	return int64(fs.dev.sectorSize)
}
