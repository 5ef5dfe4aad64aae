// Package fsys classifies paths and enumerates directories for the tree.
package fsys

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lazytree/internal/model"
)

// FS is the filesystem view the tree is built from.
type FS interface {
	// Stat classifies a single path. A missing path is not an error: it
	// yields an entry of KindMissing.
	Stat(path string) (model.PathEntry, error)
	// ReadDir lists dir. On failure part-way it returns the entries read so
	// far together with the error.
	ReadDir(dir string) ([]model.PathEntry, error)
	// VolumeRoots lists the mounted volume roots.
	VolumeRoots() []string
}

// OS is the FS backed by the host filesystem.
type OS struct {
	rootsOnce sync.Once
	roots     []string
}

// NewOS returns the host filesystem.
func NewOS() *OS {
	return &OS{}
}

func (o *OS) Stat(path string) (model.PathEntry, error) {
	path = filepath.Clean(path)
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.NewPathEntry(path, model.KindMissing, 0, -1), nil
		}
		return model.NewPathEntry(path, model.KindMissing, 0, -1), err
	}
	return EntryFromInfo(path, info), nil
}

func (o *OS) ReadDir(dir string) ([]model.PathEntry, error) {
	dirents, err := os.ReadDir(dir)
	out := make([]model.PathEntry, 0, len(dirents))
	for _, d := range dirents {
		info, ierr := d.Info()
		if ierr != nil {
			// Removed between listing and stat
			continue
		}
		out = append(out, EntryFromInfo(filepath.Join(dir, d.Name()), info))
	}
	return out, err
}

func (o *OS) VolumeRoots() []string {
	o.rootsOnce.Do(func() {
		o.roots = platformVolumeRoots()
	})
	return o.roots
}

// EntryFromInfo classifies path from an Lstat result. Symlinks are
// classified by their target and carry AttrReparsePoint.
func EntryFromInfo(path string, info fs.FileInfo) model.PathEntry {
	attrs := platformAttrs(path, info)
	kind := model.KindFile
	size := info.Size()
	if info.Mode()&fs.ModeSymlink != 0 {
		attrs |= model.AttrReparsePoint
		if target, err := os.Stat(path); err == nil {
			if target.IsDir() {
				kind = model.KindDirectory
			}
			size = target.Size()
		}
	} else if info.IsDir() {
		kind = model.KindDirectory
	}
	return model.NewPathEntry(path, kind, attrs, size)
}

// Classify returns the entry for path, treating every failure as missing.
func Classify(fsys FS, path string) model.PathEntry {
	e, err := fsys.Stat(path)
	if err != nil {
		return model.NewPathEntry(filepath.Clean(path), model.KindMissing, 0, -1)
	}
	return e
}

// IsVolumeRoot reports whether path is one of the volume roots of fsys.
func IsVolumeRoot(fsys FS, path string) bool {
	path = normalizeRoot(path)
	for _, r := range fsys.VolumeRoots() {
		if strings.EqualFold(normalizeRoot(r), path) {
			return true
		}
	}
	return false
}

func normalizeRoot(p string) string {
	p = filepath.Clean(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, `\/`)
	}
	if strings.HasSuffix(p, ":") {
		p += string(filepath.Separator)
	}
	return p
}

// IsDenied reports whether err is an enumeration failure the tree ignores.
func IsDenied(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)
}
