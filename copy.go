package vfskit

import (
	"errors"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// copyTarget completes a destination that names a directory. A trailing
// '/' gets the source base name appended; a bare drive prefix gets the
// source path from its first '/'.
func copyTarget(src, dst string) string {
	switch {
	case strings.HasSuffix(dst, "/"):
		base := src[strings.LastIndexAny(src, `/\:`)+1:]
		return dst + base
	case strings.HasSuffix(dst, ":"):
		if i := strings.IndexAny(src, `/\`); i >= 0 {
			return dst + src[i:]
		}
		return dst + "/" + src[strings.IndexByte(src, ':')+1:]
	}
	return dst
}

// samePath reports whether a and b name the same entry.
func (r *Registry) samePath(a, b string) bool {
	da, err := r.resolve(a, false)
	if err != nil {
		return false
	}
	db, err := r.resolve(b, false)
	if err != nil || da != db {
		return false
	}
	return strings.EqualFold(canonicalPath(da, a), canonicalPath(db, b))
}

// Copy copies the file src to dst, replacing dst. See copyTarget for
// destinations naming a directory. The destination receives the source
// times and attributes where its backend keeps them.
//
// Copy stops at the first failure, closes whatever it opened and returns
// that failure.
func (r *Registry) Copy(src, dst string) error {
	dst = copyTarget(src, dst)
	if r.samePath(src, dst) {
		return pathErr("copy", dst, ErrInvalid)
	}
	info, err := r.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathErr("copy", src, ErrIsDir)
	}

	in, err := r.Open(src, OpenRead)
	if err != nil {
		return err
	}
	out, err := r.Open(dst, OpenWrite|OpenCreate|OpenTruncate)
	if err != nil {
		in.Close()
		return err
	}

	buf := make([]byte, r.copyBuf)
	var total int64
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				in.Close()
				out.Close()
				return werr
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			in.Close()
			out.Close()
			return rerr
		}
	}
	if err := in.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := r.Touch(dst, info); err != nil && !errors.Is(err, ErrNotSupported) {
		return err
	}
	r.log.WithFields(logrus.Fields{"src": src, "dst": dst, "bytes": total}).
		Debugf("[VFS] Copied %s to %s", src, dst)
	return nil
}

// Move renames src within one drive and copies then removes it across
// drives.
func (r *Registry) Move(src, dst string) error {
	dst = copyTarget(src, dst)
	ds, err := r.resolve(src, false)
	if err != nil {
		return pathErr("move", src, err)
	}
	dd, err := r.resolve(dst, false)
	if err != nil {
		return pathErr("move", dst, err)
	}
	if ds == dd {
		return r.Rename(src, dst)
	}
	if err := r.Copy(src, dst); err != nil {
		return err
	}
	return r.Remove(src)
}
