//go:build darwin

package fsys

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"lazytree/internal/model"
)

func platformAttrs(path string, info fs.FileInfo) model.Attr {
	var a model.Attr
	if strings.HasPrefix(info.Name(), ".") && len(info.Name()) > 1 {
		a |= model.AttrHidden
	}
	if info.Mode().Perm()&0o222 == 0 {
		a |= model.AttrReadOnly
	}
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err == nil {
		if st.Flags&unix.UF_HIDDEN != 0 {
			a |= model.AttrHidden
		}
		if st.Flags&unix.SF_RESTRICTED != 0 {
			a |= model.AttrSystem
		}
	}
	return a
}

func platformVolumeRoots() []string {
	roots := []string{"/"}
	entries, err := os.ReadDir("/Volumes")
	if err != nil {
		return roots
	}
	for _, e := range entries {
		p := filepath.Join("/Volumes", e.Name())
		// The boot volume appears as a link back to "/"
		if target, err := os.Readlink(p); err == nil && target == "/" {
			continue
		}
		roots = append(roots, p)
	}
	return roots
}
