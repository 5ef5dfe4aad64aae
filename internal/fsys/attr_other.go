//go:build !linux && !darwin && !windows

package fsys

import (
	"io/fs"
	"strings"

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
	return a
}

func platformVolumeRoots() []string {
	return []string{"/"}
}
