package vfskit

import (
	"strings"
)

// mutable resolves path strictly and refuses read-only drives.
func (r *Registry) mutable(op, path string) (*Drive, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		return nil, pathErr(op, path, err)
	}
	if d.readOnly {
		return nil, pathErr(op, path, ErrReadOnly)
	}
	return d, nil
}

// Mkdir creates a directory.
func (r *Registry) Mkdir(path string) error {
	d, err := r.mutable("mkdir", path)
	if err != nil {
		return err
	}
	if d.isRoot(path) {
		return pathErr("mkdir", path, ErrExist)
	}
	err = d.vol.Mkdir(d.fix(path))
	r.metrics.ObserveOp(d.prefix, "mkdir", err)
	if err != nil {
		return pathErr("mkdir", path, err)
	}
	r.notify(ChangeAdded, d, path)
	return nil
}

// Remove deletes a file or an empty directory.
func (r *Registry) Remove(path string) error {
	d, err := r.mutable("remove", path)
	if err != nil {
		return err
	}
	if d.isRoot(path) {
		return pathErr("remove", path, ErrInvalid)
	}
	err = d.vol.Remove(d.fix(path))
	r.metrics.ObserveOp(d.prefix, "remove", err)
	if err != nil {
		return pathErr("remove", path, err)
	}
	r.notify(ChangeRemoved, d, path)
	return nil
}

// Rename moves an entry within one drive. A newPath without a drive
// prefix names a path on the drive of oldPath.
func (r *Registry) Rename(oldPath, newPath string) error {
	d, err := r.mutable("rename", oldPath)
	if err != nil {
		return err
	}
	if !strings.Contains(newPath, ":") {
		newPath = d.prefix + "/" + strings.TrimLeft(newPath, `/\`)
	}
	nd, err := r.resolve(newPath, false)
	if err != nil {
		return pathErr("rename", newPath, err)
	}
	if nd != d {
		return pathErr("rename", newPath, ErrInvalid)
	}
	if d.isRoot(oldPath) || d.isRoot(newPath) {
		return pathErr("rename", oldPath, ErrInvalid)
	}

	err = d.vol.Rename(d.fix(oldPath), d.fix(newPath))
	r.metrics.ObserveOp(d.prefix, "rename", err)
	if err != nil {
		return pathErr("rename", oldPath, err)
	}
	r.notify(ChangeRenamed, d, oldPath)
	r.notify(ChangeRenamed, d, newPath)
	return nil
}

// Stat returns the metadata of path. The drive root reports the volume
// label as its name.
func (r *Registry) Stat(path string) (Info, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		return Info{}, pathErr("stat", path, err)
	}
	if d.isRoot(path) {
		return r.statRoot(d), nil
	}

	info, err := d.vol.Stat(d.fix(path))
	r.metrics.ObserveOp(d.prefix, "stat", err)
	if err != nil {
		return Info{}, pathErr("stat", path, err)
	}
	folder, err := r.folderOf(d, path, true)
	if err != nil {
		return Info{}, pathErr("stat", path, err)
	}
	r.finishInfo(d, &info, folder)
	return info, nil
}

func (r *Registry) statRoot(d *Drive) Info {
	info := Info{
		Name:    d.prefix,
		Attr:    AttrDir | AttrRead | AttrWrite,
		Drive:   d.index,
		Inode:   r.layout.Pack(uint32(d.index), 0, 0),
		Created: d.vol.Created(),
	}
	if label, err := d.vol.Label(); err == nil && label != "" {
		info.Name = label
	}
	if !d.fixed {
		info.Attr |= AttrRemovable
	}
	if u, err := d.vol.Usage(); err == nil {
		info.Size = u.Used()
		info.BlockSize = u.BlockSize
		info.Blocks = blocksFor(u.Total, u.BlockSize)
	}
	info.Modified = info.Created
	return info
}

// Touch applies the times and the hidden and system attributes of info to
// path. Zero times are left untouched.
func (r *Registry) Touch(path string, info Info) error {
	d, err := r.mutable("touch", path)
	if err != nil {
		return err
	}
	if d.isRoot(path) {
		return pathErr("touch", path, ErrInvalid)
	}
	err = d.vol.Touch(d.fix(path), info)
	r.metrics.ObserveOp(d.prefix, "touch", err)
	return pathErr("touch", path, err)
}

func (r *Registry) usage(op, path string) (*Drive, Usage, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		return nil, Usage{}, pathErr(op, path, err)
	}
	u, err := d.vol.Usage()
	if err != nil {
		return d, Usage{}, pathErr(op, path, err)
	}
	return d, u, nil
}

// FsSize returns the capacity of the drive holding path in bytes.
func (r *Registry) FsSize(path string) (int64, error) {
	_, u, err := r.usage("fssize", path)
	return u.Total, err
}

// FsFree returns the free space of the drive holding path in bytes.
func (r *Registry) FsFree(path string) (int64, error) {
	_, u, err := r.usage("fsfree", path)
	return u.Free, err
}

// FsType returns the engine family of the drive holding path.
func (r *Registry) FsType(path string) (FSType, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		return TypeRoot, pathErr("fstype", path, err)
	}
	return d.Type(), nil
}

// Label returns the volume label of the drive holding path.
func (r *Registry) Label(path string) (string, error) {
	d, err := r.resolve(path, false)
	if err != nil {
		return "", pathErr("label", path, err)
	}
	label, err := d.vol.Label()
	return label, pathErr("label", path, err)
}

// SetLabel takes "DRIVE:LABEL" and relabels the drive.
func (r *Registry) SetLabel(spec string) error {
	d, err := r.mutable("setlabel", spec)
	if err != nil {
		return err
	}
	err = d.vol.SetLabel(d.rest(spec))
	r.metrics.ObserveOp(d.prefix, "setlabel", err)
	return pathErr("setlabel", spec, err)
}
