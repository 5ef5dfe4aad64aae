//go:build windows

package fsys

import (
	"io/fs"

	"golang.org/x/sys/windows"

	"lazytree/internal/model"
)

var attrMap = []struct {
	win  uint32
	attr model.Attr
}{
	{windows.FILE_ATTRIBUTE_HIDDEN, model.AttrHidden},
	{windows.FILE_ATTRIBUTE_SYSTEM, model.AttrSystem},
	{windows.FILE_ATTRIBUTE_REPARSE_POINT, model.AttrReparsePoint},
	{windows.FILE_ATTRIBUTE_ENCRYPTED, model.AttrEncrypted},
	{windows.FILE_ATTRIBUTE_OFFLINE, model.AttrOffline},
	{windows.FILE_ATTRIBUTE_READONLY, model.AttrReadOnly},
}

func platformAttrs(path string, info fs.FileInfo) model.Attr {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0
	}
	raw, err := windows.GetFileAttributes(p)
	if err != nil {
		return 0
	}
	var a model.Attr
	for _, m := range attrMap {
		if raw&m.win != 0 {
			a |= m.attr
		}
	}
	return a
}

func platformVolumeRoots() []string {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil
	}
	var roots []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) != 0 {
			roots = append(roots, string(rune('A'+i))+`:\`)
		}
	}
	return roots
}
