package vfskit

import (
	"io"
	"time"

	"github.com/gobeaver/vfskit/engine/fatfs"
	"github.com/gobeaver/vfskit/fattime"
)

// FATConfig describes a FAT medium created by the "fat" factory.
type FATConfig struct {
	Capacity    int64 `mapstructure:"capacity"`
	ClusterSize int64 `mapstructure:"cluster_size"`
	Formatted   bool  `mapstructure:"formatted"`
}

// FATBackend serves a FAT medium. The engine takes drive-prefixed paths.
type FATBackend struct {
	medium *fatfs.Medium
}

// NewFATBackend returns a backend for m.
func NewFATBackend(m *fatfs.Medium) *FATBackend {
	return &FATBackend{medium: m}
}

// NewFATBackendFromConfig creates a fresh medium described by cfg.
func NewFATBackendFromConfig(cfg FATConfig) *FATBackend {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1 << 20
	}
	opts := []fatfs.MediumOption{fatfs.WithClusterSize(cfg.ClusterSize)}
	if cfg.Formatted {
		opts = append(opts, fatfs.Formatted())
	}
	return NewFATBackend(fatfs.NewMedium(cfg.Capacity, opts...))
}

// Medium returns the medium, e.g. to simulate card removal.
func (b *FATBackend) Medium() *fatfs.Medium { return b.medium }

func (b *FATBackend) Type() FSType         { return TypeFAT }
func (b *FATBackend) PathStyle() PathStyle { return FullPath }

// Mount registers a work area for the medium. The engine checks the
// volume on every mount, so fixed has no further effect.
func (b *FATBackend) Mount(prefix string, fixed bool) (Volume, error) {
	fs := &fatfs.FS{}
	if r := fs.Mount(b.medium, prefix); r != fatfs.OK {
		fs.Unmount()
		return nil, FATError(int(r))
	}
	return &fatVolume{fs: fs}, nil
}

func (b *FATBackend) Format(prefix string) error {
	return FATError(int(fatfs.Mkfs(b.medium)))
}

type fatVolume struct {
	fs *fatfs.FS
}

func fatErr(r fatfs.Result) error {
	return FATError(int(r))
}

// fatMode maps open flags onto engine modes. Append positioning is left to
// the dispatcher; the engine's append mode would also create the file.
func fatMode(flags OpenFlag) byte {
	var m byte
	if flags&OpenRead != 0 {
		m |= fatfs.FaRead
	}
	if flags&OpenWrite != 0 {
		m |= fatfs.FaWrite
	}
	switch {
	case flags&OpenCreate != 0 && flags&OpenExclusive != 0:
		m |= fatfs.FaCreateNew
	case flags&OpenCreate != 0 && flags&OpenTruncate != 0:
		m |= fatfs.FaCreateAlways
	case flags&OpenCreate != 0:
		m |= fatfs.FaOpenAlways
	}
	return m
}

func (v *fatVolume) Open(name string, flags OpenFlag, existed bool) (BackendFile, error) {
	f := new(fatfs.File)
	if r := v.fs.Open(f, name, fatMode(flags)); r != fatfs.OK {
		return nil, fatErr(r)
	}
	// The engine only truncates when creating.
	if flags&OpenTruncate != 0 && flags&OpenCreate == 0 {
		if r := f.Truncate(); r != fatfs.OK {
			f.Close()
			return nil, fatErr(r)
		}
	}
	return &fatFile{f: f}, nil
}

func fatInfo(fi fatfs.FileInfo, clusterSize int64) Info {
	info := Info{
		Name:      fi.Name,
		Size:      fi.Size,
		Attr:      AttrRead | AttrWrite,
		Modified:  fattime.ToTime(fi.Fdate, fi.Ftime),
		Created:   fattime.ToTime(fi.Crdate, fi.Crtime),
		Inode:     fi.Cluster,
		BlockSize: clusterSize,
	}
	if info.Created.IsZero() {
		info.Created = info.Modified
	}
	if fi.Attrib&fatfs.AmRdo != 0 {
		info.Attr &^= AttrWrite
	}
	if fi.Attrib&fatfs.AmHid != 0 {
		info.Attr |= AttrHidden
	}
	if fi.Attrib&fatfs.AmSys != 0 {
		info.Attr |= AttrSystem
	}
	if fi.Attrib&fatfs.AmDir != 0 {
		info.Attr |= AttrDir | AttrExec
	} else {
		info.Attr |= AttrRegular
	}
	return info
}

func (v *fatVolume) clusterSize() int64 {
	_, _, cs, _ := v.fs.GetFree()
	return cs
}

func (v *fatVolume) OpenDir(name string) (BackendDir, error) {
	d := new(fatfs.Dir)
	if r := v.fs.OpenDir(d, name); r != fatfs.OK {
		return nil, fatErr(r)
	}
	return &fatDir{d: d, clusterSize: v.clusterSize()}, nil
}

func (v *fatVolume) Stat(name string) (Info, error) {
	var fi fatfs.FileInfo
	if r := v.fs.Stat(name, &fi); r != fatfs.OK {
		return Info{}, fatErr(r)
	}
	return fatInfo(fi, v.clusterSize()), nil
}

func (v *fatVolume) Mkdir(name string) error {
	return fatErr(v.fs.Mkdir(name))
}

func (v *fatVolume) Remove(name string) error {
	return fatErr(v.fs.Unlink(name))
}

func (v *fatVolume) Rename(oldName, newName string) error {
	return fatErr(v.fs.Rename(oldName, newName))
}

// Touch skips entries whose modification time does not encode, i.e. the
// zero time and anything before 1981.
func (v *fatVolume) Touch(name string, info Info) error {
	date, tm := fattime.FromTime(info.Modified)
	if date == 0 && tm == 0 {
		return nil
	}
	var attr byte
	if info.Attr&AttrHidden != 0 {
		attr |= fatfs.AmHid
	}
	if info.Attr&AttrSystem != 0 {
		attr |= fatfs.AmSys
	}
	if r := v.fs.Chmod(name, attr, fatfs.AmHid|fatfs.AmSys); r != fatfs.OK {
		return fatErr(r)
	}
	return fatErr(v.fs.Utime(name, date, tm))
}

func (v *fatVolume) Usage() (Usage, error) {
	free, total, cs, r := v.fs.GetFree()
	if r != fatfs.OK {
		return Usage{}, fatErr(r)
	}
	return Usage{Total: total * cs, Free: free * cs, BlockSize: cs}, nil
}

func (v *fatVolume) Created() time.Time { return time.Time{} }

func (v *fatVolume) Label() (string, error) {
	label, _, r := v.fs.GetLabel()
	return label, fatErr(r)
}

func (v *fatVolume) SetLabel(label string) error {
	return fatErr(v.fs.SetLabel(label))
}

func (v *fatVolume) Locked() bool { return v.fs.Locked() }

func (v *fatVolume) Unmount() error {
	return fatErr(v.fs.Unmount())
}

type fatFile struct {
	f *fatfs.File
}

func (f *fatFile) Read(p []byte) (int, error) {
	n, r := f.f.Read(p)
	return n, fatErr(r)
}

func (f *fatFile) Write(p []byte) (int, error) {
	n, r := f.f.Write(p)
	return n, fatErr(r)
}

func (f *fatFile) Seek(offset int64) error {
	return fatErr(f.f.Lseek(offset))
}

func (f *fatFile) Tell() int64 { return f.f.Tell() }
func (f *fatFile) Size() int64 { return f.f.Size() }

func (f *fatFile) Sync() error {
	return fatErr(f.f.Sync())
}

// Truncate cuts the file at size and restores the position, clipped to
// the new size. The engine truncates at the file pointer.
func (f *fatFile) Truncate(size int64) error {
	pos := f.f.Tell()
	if r := f.f.Lseek(size); r != fatfs.OK {
		return fatErr(r)
	}
	if f.f.Tell() != size {
		_ = f.f.Lseek(pos)
		return ErrNoSpace
	}
	if r := f.f.Truncate(); r != fatfs.OK {
		return fatErr(r)
	}
	return fatErr(f.f.Lseek(min(pos, size)))
}

func (f *fatFile) Close() error {
	return fatErr(f.f.Close())
}

type fatDir struct {
	d           *fatfs.Dir
	clusterSize int64
}

func (d *fatDir) Next() (Info, error) {
	var fi fatfs.FileInfo
	if r := d.d.Read(&fi); r != fatfs.OK {
		return Info{}, fatErr(r)
	}
	if fi.Name == "" {
		return Info{}, io.EOF
	}
	return fatInfo(fi, d.clusterSize), nil
}

func (d *fatDir) Close() error {
	return fatErr(d.d.Close())
}
