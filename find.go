package vfskit

import (
	"fmt"
	"io"
	"strings"

	"github.com/gobwas/glob"
)

// Found is one result of Find.
type Found struct {
	Path string
	Info Info
}

// Find walks the tree below root and returns the entries whose path
// relative to root matches pattern. '*' matches within one path element,
// '**' across elements. Searching the pseudo root ("" or "/") walks every
// mounted drive, with the drive prefix as the first element.
func (r *Registry) Find(root, pattern string) ([]Found, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("%w: bad find pattern %q: %v", ErrInvalid, pattern, err)
	}
	var out []Found
	err = r.walk(root, "", func(path, rel string, info Info) {
		if g.Match(rel) {
			out = append(out, Found{Path: path, Info: info})
		}
	})
	return out, err
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return name
	}
	return strings.TrimRight(dir, `/\`) + "/" + name
}

func (r *Registry) walk(dir, rel string, fn func(path, rel string, info Info)) error {
	d, err := r.OpenDir(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	for {
		info, err := d.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		path := joinPath(dir, info.Name)
		childRel := info.Name
		if rel != "" {
			childRel = rel + "/" + info.Name
		}
		fn(path, childRel, info)
		if info.IsDir() {
			if err := r.walk(path, childRel, fn); err != nil {
				return err
			}
		}
	}
}
