package vfskit

import (
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/gobeaver/vfskit/engine/flatfs"
)

// FlatConfig describes the flash image created by the "flat" factory.
type FlatConfig struct {
	Sectors    int    `mapstructure:"sectors"`
	SectorSize int    `mapstructure:"sector_size"`
	Label      string `mapstructure:"label"`
}

// FlatBackend serves a flat flash filesystem. There are no directories,
// names are limited to 21 bytes and writes always append.
type FlatBackend struct {
	dev   *flatfs.Device
	label string
	now   func() time.Time
}

// NewFlatBackend returns a backend for dev. The engine stores no volume
// label, so the one given here is reported.
func NewFlatBackend(dev *flatfs.Device, label string) *FlatBackend {
	return &FlatBackend{dev: dev, label: label, now: time.Now}
}

// NewFlatBackendFromConfig creates an erased device described by cfg.
func NewFlatBackendFromConfig(cfg FlatConfig) *FlatBackend {
	if cfg.Sectors <= 0 {
		cfg.Sectors = 256
	}
	return NewFlatBackend(flatfs.NewDevice(cfg.Sectors, cfg.SectorSize), cfg.Label)
}

// Device returns the flash image.
func (b *FlatBackend) Device() *flatfs.Device { return b.dev }

func (b *FlatBackend) Type() FSType         { return TypeFlat }
func (b *FlatBackend) PathStyle() PathStyle { return RelativePath }

func (b *FlatBackend) Mount(prefix string, fixed bool) (Volume, error) {
	fs, c := flatfs.Start(b.dev, b.now)
	if c != flatfs.OK {
		return nil, FlatError(int(c))
	}
	return &flatVolume{fs: fs, label: b.label}, nil
}

func (b *FlatBackend) Format(prefix string) error {
	b.dev.Wake()
	return FlatError(int(flatfs.Format(b.dev)))
}

// fitName shortens names the index cannot hold to stem~1.ext.
func fitName(name string) string {
	if len(name) <= flatfs.FNameLen {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > 4 {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	return stem[:flatfs.FNameLen-len(ext)-2] + "~1" + ext
}

// flatName rejects nested paths and fits the rest.
func flatName(name string) (string, error) {
	if name == "" {
		return "", ErrInvalid
	}
	if strings.Contains(name, "/") {
		return "", ErrNotDir
	}
	return fitName(name), nil
}

type flatVolume struct {
	fs    *flatfs.FS
	label string
}

func (v *flatVolume) Open(name string, flags OpenFlag, existed bool) (BackendFile, error) {
	name, err := flatName(name)
	if err != nil {
		return nil, err
	}
	var mode int
	if flags&OpenRead != 0 {
		mode |= flatfs.OpenRead
	}
	if flags&(OpenWrite|OpenAppend) != 0 {
		mode |= flatfs.OpenWrite
	}
	if flags&OpenTruncate != 0 || (flags&OpenCreate != 0 && !existed) {
		mode |= flatfs.OpenCreate
	}
	d := new(flatfs.Desc)
	if c := v.fs.Open(d, name, mode); c != flatfs.OK {
		return nil, FlatError(int(c))
	}
	return &flatFile{fs: v.fs, d: d}, nil
}

func (v *flatVolume) info(fno int, st flatfs.Stat) Info {
	created := time.Unix(int64(st.Ctime), 0).UTC()
	return Info{
		Name:      st.Name,
		Size:      int64(st.Len),
		Created:   created,
		Modified:  created,
		Attr:      AttrRead | AttrWrite | AttrRegular,
		Inode:     uint32(fno),
		BlockSize: v.fs.SectorSize(),
	}
}

// lookup scans the index for the live slot called name.
func (v *flatVolume) lookup(name string) (int, flatfs.Stat, error) {
	for fno := 0; ; fno++ {
		var st flatfs.Stat
		c := v.fs.Info(&st, fno)
		if c < 0 {
			return 0, st, FlatError(int(c))
		}
		if c == 0 {
			return 0, st, FlatError(int(flatfs.ErrFileNotFound))
		}
		if st.Flags&flatfs.StatActive != 0 && st.Name == name {
			return fno, st, nil
		}
	}
}

// OpenDir lists the root, the only directory there is.
func (v *flatVolume) OpenDir(name string) (BackendDir, error) {
	if name != "" {
		return nil, FlatError(int(flatfs.ErrFileNotFound))
	}
	return &flatDir{v: v}, nil
}

func (v *flatVolume) Stat(name string) (Info, error) {
	name, err := flatName(name)
	if err != nil {
		return Info{}, err
	}
	fno, st, err := v.lookup(name)
	if err != nil {
		return Info{}, err
	}
	return v.info(fno, st), nil
}

func (v *flatVolume) Mkdir(string) error { return ErrNotSupported }

func (v *flatVolume) Remove(name string) error {
	name, err := flatName(name)
	if err != nil {
		return err
	}
	var d flatfs.Desc
	if c := v.fs.Open(&d, name, flatfs.OpenRead); c != flatfs.OK {
		return FlatError(int(c))
	}
	return FlatError(int(v.fs.Delete(&d)))
}

// Rename refuses an existing destination; the engine would replace it.
func (v *flatVolume) Rename(oldName, newName string) error {
	oldName, err := flatName(oldName)
	if err != nil {
		return err
	}
	newName, err = flatName(newName)
	if err != nil {
		return err
	}
	if _, _, err := v.lookup(newName); err == nil {
		return ErrExist
	}

	var src, dst flatfs.Desc
	if c := v.fs.Open(&src, oldName, flatfs.OpenRead); c != flatfs.OK {
		return FlatError(int(c))
	}
	if c := v.fs.Open(&dst, newName, flatfs.OpenCreate); c != flatfs.OK {
		return FlatError(int(c))
	}
	if c := v.fs.Rename(&src, &dst); c != flatfs.OK {
		v.fs.Delete(&dst)
		return FlatError(int(c))
	}
	return nil
}

func (v *flatVolume) Touch(string, Info) error { return ErrNotSupported }

func (v *flatVolume) Usage() (Usage, error) {
	total, used, c := v.fs.DiskInfo()
	if c != flatfs.OK {
		return Usage{}, FlatError(int(c))
	}
	return Usage{Total: total, Free: total - used, BlockSize: v.fs.SectorSize()}, nil
}

func (v *flatVolume) Created() time.Time { return time.Time{} }

func (v *flatVolume) Label() (string, error) { return v.label, nil }

func (v *flatVolume) SetLabel(string) error { return ErrNotSupported }

func (v *flatVolume) Locked() bool { return v.fs.Busy() }

// Unmount sends the device into deep sleep.
func (v *flatVolume) Unmount() error {
	return FlatError(int(v.fs.Sleep()))
}

type flatFile struct {
	fs *flatfs.FS
	d  *flatfs.Desc
}

func (f *flatFile) Read(p []byte) (int, error) {
	n, c := f.fs.Read(f.d, p)
	return n, FlatError(int(c))
}

// Write appends p whatever the position.
func (f *flatFile) Write(p []byte) (int, error) {
	n, c := f.fs.Write(f.d, p)
	return n, FlatError(int(c))
}

func (f *flatFile) Seek(offset int64) error {
	if offset > math.MaxUint32 {
		return ErrInvalid
	}
	f.d.Pos = uint32(offset)
	return nil
}

func (f *flatFile) Tell() int64 { return int64(f.d.Pos) }
func (f *flatFile) Size() int64 { return int64(f.d.Len) }

func (f *flatFile) Sync() error { return nil }

func (f *flatFile) Truncate(int64) error { return ErrNotSupported }

func (f *flatFile) Close() error {
	return FlatError(int(f.fs.Close(f.d)))
}

type flatDir struct {
	v   *flatVolume
	fno int
}

func (d *flatDir) Next() (Info, error) {
	for {
		var st flatfs.Stat
		fno := d.fno
		c := d.v.fs.Info(&st, fno)
		if c < 0 {
			return Info{}, FlatError(int(c))
		}
		if c == 0 {
			return Info{}, io.EOF
		}
		d.fno++
		if st.Flags&flatfs.StatActive != 0 {
			return d.v.info(fno, st), nil
		}
	}
}

func (d *flatDir) Close() error {
	d.fno = 0
	return nil
}
