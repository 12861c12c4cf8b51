package vfskit

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/gobeaver/vfskit/engine/lfs"
)

// Custom attribute types kept by the LFS adapter.
const (
	lfsAttrCreated  uint8 = 'c'
	lfsAttrModified uint8 = 'm'
	lfsAttrLabel    uint8 = 'l'
)

// LFSConfig describes the flash device created by the "lfs" factory.
type LFSConfig struct {
	// Dir keeps the device on disk; empty keeps it in memory.
	Dir        string `mapstructure:"dir"`
	BlockSize  int64  `mapstructure:"block_size"`
	BlockCount int64  `mapstructure:"block_count"`
}

// LFSBackend serves a log-structured flash device. Paths are relative to
// the drive root.
type LFSBackend struct {
	dev *lfs.Device
	now func() time.Time
}

// NewLFSBackend returns a backend for dev.
func NewLFSBackend(dev *lfs.Device) *LFSBackend {
	return &LFSBackend{dev: dev, now: time.Now}
}

// OpenLFSBackend opens the device described by cfg.
func OpenLFSBackend(cfg LFSConfig) (*LFSBackend, error) {
	dev, err := lfs.OpenDevice(lfs.DeviceConfig{
		Dir:        cfg.Dir,
		BlockSize:  cfg.BlockSize,
		BlockCount: cfg.BlockCount,
	})
	if err != nil {
		return nil, err
	}
	return NewLFSBackend(dev), nil
}

// Device returns the flash device.
func (b *LFSBackend) Device() *lfs.Device { return b.dev }

// Close releases the device storage.
func (b *LFSBackend) Close() error { return b.dev.Close() }

func (b *LFSBackend) Type() FSType         { return TypeLFS }
func (b *LFSBackend) PathStyle() PathStyle { return RelativePath }

func (b *LFSBackend) Mount(prefix string, fixed bool) (Volume, error) {
	fs := &lfs.FS{}
	if err := fs.Mount(b.dev); err != nil {
		return nil, lfsErr(err)
	}
	return &lfsVolume{fs: fs, now: b.now}, nil
}

// Format erases the device and stamps the creation time on the root.
func (b *LFSBackend) Format(prefix string) error {
	if err := lfs.Format(b.dev); err != nil {
		return lfsErr(err)
	}
	fs := &lfs.FS{}
	if err := fs.Mount(b.dev); err != nil {
		return lfsErr(err)
	}
	defer fs.Unmount()
	return lfsErr(fs.SetAttr("", lfsAttrCreated, encodeTime(b.now())))
}

func lfsErr(err error) error {
	if err == nil {
		return nil
	}
	var code lfs.Error
	if errors.As(err, &code) {
		return LFSError(int(code))
	}
	return &BackendError{Backend: "lfs", Code: int(lfs.ErrIO), Err: ErrIO}
}

func encodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(t.Unix()))
	return b
}

func decodeTime(b []byte) time.Time {
	if len(b) != 8 {
		return time.Time{}
	}
	sec := int64(binary.LittleEndian.Uint64(b))
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

type lfsVolume struct {
	fs  *lfs.FS
	now func() time.Time
}

func lfsFlags(flags OpenFlag) int {
	var f int
	if flags&OpenRead != 0 {
		f |= lfs.ORdOnly
	}
	if flags&OpenWrite != 0 {
		f |= lfs.OWrOnly
	}
	if flags&OpenCreate != 0 {
		f |= lfs.OCreat
	}
	if flags&OpenExclusive != 0 {
		f |= lfs.OExcl
	}
	if flags&OpenTruncate != 0 {
		f |= lfs.OTrunc
	}
	if flags&OpenAppend != 0 {
		f |= lfs.OAppend
	}
	return f
}

func (v *lfsVolume) Open(name string, flags OpenFlag, existed bool) (BackendFile, error) {
	created := &lfs.Attr{Type: lfsAttrCreated}
	modified := &lfs.Attr{Type: lfsAttrModified}
	f, err := v.fs.OpenCfg(name, lfsFlags(flags), &lfs.FileConfig{Attrs: []*lfs.Attr{created, modified}})
	if err != nil {
		return nil, lfsErr(err)
	}
	if flags&OpenCreate != 0 && !existed {
		stamp := encodeTime(v.now())
		created.Buffer = stamp
		modified.Buffer = stamp
	}
	return &lfsFile{f: f, modified: modified}, nil
}

func (v *lfsVolume) info(path string, li lfs.Info) Info {
	bs, _ := v.fs.Geometry()
	info := Info{
		Name:      li.Name,
		Size:      li.Size,
		Attr:      AttrRead | AttrWrite,
		Inode:     li.ID,
		BlockSize: bs,
	}
	if li.Type == lfs.TypeDir {
		info.Attr |= AttrDir | AttrExec
	} else {
		info.Attr |= AttrRegular
	}
	if raw, err := v.fs.GetAttr(path, lfsAttrCreated); err == nil {
		info.Created = decodeTime(raw)
	}
	if raw, err := v.fs.GetAttr(path, lfsAttrModified); err == nil {
		info.Modified = decodeTime(raw)
	}
	if info.Modified.IsZero() {
		info.Modified = info.Created
	}
	return info
}

func (v *lfsVolume) OpenDir(name string) (BackendDir, error) {
	d, err := v.fs.OpenDir(name)
	if err != nil {
		return nil, lfsErr(err)
	}
	return &lfsDir{v: v, path: name, d: d}, nil
}

func (v *lfsVolume) Stat(name string) (Info, error) {
	li, err := v.fs.Stat(name)
	if err != nil {
		return Info{}, lfsErr(err)
	}
	return v.info(name, li), nil
}

func (v *lfsVolume) Mkdir(name string) error {
	if err := v.fs.Mkdir(name); err != nil {
		return lfsErr(err)
	}
	stamp := encodeTime(v.now())
	if err := v.fs.SetAttr(name, lfsAttrCreated, stamp); err != nil {
		return lfsErr(err)
	}
	return lfsErr(v.fs.SetAttr(name, lfsAttrModified, stamp))
}

func (v *lfsVolume) Remove(name string) error {
	return lfsErr(v.fs.Remove(name))
}

func (v *lfsVolume) Rename(oldName, newName string) error {
	return lfsErr(v.fs.Rename(oldName, newName))
}

// Touch stores the non-zero times of info. Attribute bits have no place on
// this engine.
func (v *lfsVolume) Touch(name string, info Info) error {
	if !info.Created.IsZero() {
		if err := v.fs.SetAttr(name, lfsAttrCreated, encodeTime(info.Created)); err != nil {
			return lfsErr(err)
		}
	}
	if !info.Modified.IsZero() {
		return lfsErr(v.fs.SetAttr(name, lfsAttrModified, encodeTime(info.Modified)))
	}
	return nil
}

func (v *lfsVolume) Usage() (Usage, error) {
	used, err := v.fs.Size()
	if err != nil {
		return Usage{}, lfsErr(err)
	}
	bs, bc := v.fs.Geometry()
	free := bc - used
	if free < 0 {
		free = 0
	}
	return Usage{Total: bs * bc, Free: free * bs, BlockSize: bs}, nil
}

func (v *lfsVolume) Created() time.Time {
	raw, err := v.fs.GetAttr("", lfsAttrCreated)
	if err != nil {
		return time.Time{}
	}
	return decodeTime(raw)
}

func (v *lfsVolume) Label() (string, error) {
	raw, err := v.fs.GetAttr("", lfsAttrLabel)
	if errors.Is(err, lfs.ErrNoAttr) {
		return "", nil
	}
	if err != nil {
		return "", lfsErr(err)
	}
	return string(raw), nil
}

func (v *lfsVolume) SetLabel(label string) error {
	if len(label) > lfs.NameMax {
		return LFSError(int(lfs.ErrNameTooLong))
	}
	return lfsErr(v.fs.SetAttr("", lfsAttrLabel, []byte(label)))
}

func (v *lfsVolume) Locked() bool { return v.fs.Locked() }

func (v *lfsVolume) Unmount() error {
	return lfsErr(v.fs.Unmount())
}

type lfsFile struct {
	f        *lfs.File
	modified *lfs.Attr
}

func (f *lfsFile) Read(p []byte) (int, error) {
	n, err := f.f.Read(p)
	return n, lfsErr(err)
}

func (f *lfsFile) Write(p []byte) (int, error) {
	n, err := f.f.Write(p)
	return n, lfsErr(err)
}

func (f *lfsFile) Seek(offset int64) error {
	_, err := f.f.Seek(offset, lfs.SeekSet)
	return lfsErr(err)
}

func (f *lfsFile) Tell() int64 { return f.f.Tell() }
func (f *lfsFile) Size() int64 { return f.f.Size() }

func (f *lfsFile) Sync() error {
	return lfsErr(f.f.Sync())
}

func (f *lfsFile) Truncate(size int64) error {
	return lfsErr(f.f.Truncate(size))
}

func (f *lfsFile) Close() error {
	return lfsErr(f.f.Close())
}

// SetModTime records t in the modified attribute written on sync.
func (f *lfsFile) SetModTime(t time.Time) {
	f.modified.Buffer = encodeTime(t)
}

type lfsDir struct {
	v    *lfsVolume
	path string
	d    *lfs.Dir
}

func (d *lfsDir) Next() (Info, error) {
	for {
		var li lfs.Info
		ok, err := d.d.Read(&li)
		if err != nil {
			return Info{}, lfsErr(err)
		}
		if !ok {
			return Info{}, io.EOF
		}
		if li.Name == "." || li.Name == ".." {
			continue
		}
		child := li.Name
		if d.path != "" {
			child = d.path + "/" + li.Name
		}
		return d.v.info(child, li), nil
	}
}

func (d *lfsDir) Close() error {
	return lfsErr(d.d.Close())
}
