package vfskit

import (
	"io"
	"strings"
)

// Dir is an open directory cursor. A Dir opened on "" or "/" when no
// drive claims the path is the pseudo root, which lists the mounted
// drives.
type Dir struct {
	reg     *Registry
	drive   *Drive
	bd      BackendDir
	path    string
	pattern string
	folder  uint32
	state   handleState
	next    int
}

// OpenDir opens the directory at path.
func (r *Registry) OpenDir(path string) (*Dir, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		if len(path) <= 1 {
			return &Dir{reg: r, path: path, state: stateOpen}, nil
		}
		return nil, pathErr("opendir", path, err)
	}

	folder, err := r.folderOf(d, path, false)
	if err != nil {
		return nil, pathErr("opendir", path, err)
	}
	bd, err := d.vol.OpenDir(d.fix(path))
	r.metrics.ObserveOp(d.prefix, "opendir", err)
	if err != nil {
		return nil, pathErr("opendir", path, err)
	}
	return &Dir{reg: r, drive: d, bd: bd, path: path, folder: folder, state: stateOpen}, nil
}

// folderOf returns the backend item number of path, or of the directory
// holding it when parent is set. The drive root is folder 0.
func (r *Registry) folderOf(d *Drive, path string, parent bool) (uint32, error) {
	rel := strings.Trim(strings.ReplaceAll(d.rest(path), `\`, "/"), "/")
	if parent {
		i := strings.LastIndexByte(rel, '/')
		if i < 0 {
			return 0, nil
		}
		rel = rel[:i]
	}
	if rel == "" {
		return 0, nil
	}
	info, err := d.vol.Stat(d.fix(d.prefix + "/" + rel))
	if err != nil {
		return 0, err
	}
	return info.Inode, nil
}

// Read returns the next entry, io.EOF after the last one.
func (dir *Dir) Read() (Info, error) {
	if dir == nil || dir.state != stateOpen {
		return Info{}, pathErr("readdir", "", ErrBadHandle)
	}
	if dir.drive == nil {
		return dir.readRoot()
	}
	if !dir.drive.Mounted() {
		return Info{}, pathErr("readdir", dir.path, ErrNotMounted)
	}

	info, err := dir.bd.Next()
	if err == io.EOF {
		return Info{}, io.EOF
	}
	if err != nil {
		return Info{}, pathErr("readdir", dir.path, err)
	}
	dir.reg.finishInfo(dir.drive, &info, dir.folder)
	return info, nil
}

func (dir *Dir) readRoot() (Info, error) {
	r := dir.reg
	for dir.next < len(r.drives) {
		d := r.drives[dir.next]
		dir.next++
		if !d.Mounted() {
			continue
		}
		info := Info{
			Name:  d.prefix,
			Attr:  AttrDir | AttrRead | AttrWrite | AttrExec,
			Drive: d.index,
			Inode: r.layout.Pack(uint32(d.index), 0, 0),
		}
		if d.Type() == TypeFlat {
			info.Attr |= AttrFlat
		}
		if u, err := d.vol.Usage(); err == nil {
			info.Size = u.Used()
			info.BlockSize = u.BlockSize
			info.Blocks = blocksFor(u.Total, u.BlockSize)
		}
		info.Created = d.vol.Created()
		return info, nil
	}
	return Info{}, io.EOF
}

// finishInfo stamps the drive-wide fields of an entry returned by a
// backend whose Inode still holds the backend item number.
func (r *Registry) finishInfo(d *Drive, info *Info, folder uint32) {
	info.Name = boundName(info.Name)
	info.Drive = d.index
	info.Inode = r.layout.Pack(uint32(d.index), folder, info.Inode)
	if info.Blocks == 0 {
		info.Blocks = blocksFor(info.Size, info.BlockSize)
	}
}

// FindFirst opens the directory at path and returns its first entry whose
// name matches pattern. An empty pattern matches everything. When nothing
// matches, the directory is closed and io.EOF returned.
func (r *Registry) FindFirst(path, pattern string) (*Dir, Info, error) {
	dir, err := r.OpenDir(path)
	if err != nil {
		return nil, Info{}, err
	}
	dir.pattern = pattern
	info, err := dir.FindNext()
	if err != nil {
		_ = dir.Close()
		return nil, Info{}, err
	}
	return dir, info, nil
}

// FindNext returns the next entry matching the pattern given to
// FindFirst.
func (dir *Dir) FindNext() (Info, error) {
	pattern := "*"
	if dir != nil && dir.pattern != "" {
		pattern = dir.pattern
	}
	for {
		info, err := dir.Read()
		if err != nil {
			return Info{}, err
		}
		if Match(pattern, info.Name) {
			return info, nil
		}
	}
}

// Close releases the cursor. Closing a closed Dir returns nil.
func (dir *Dir) Close() error {
	if dir == nil || dir.state != stateOpen {
		return nil
	}
	dir.state = stateClosed
	if dir.bd == nil {
		return nil
	}
	err := dir.bd.Close()
	dir.drive, dir.bd = nil, nil
	return pathErr("closedir", dir.path, err)
}
