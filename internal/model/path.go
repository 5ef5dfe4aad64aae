package model

import (
	"path/filepath"
	"strings"
)

// Kind is the classification of a path, computed once when the entry is built.
type Kind int

const (
	KindMissing Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "missing"
	}
}

// Attr is a set of filesystem attribute flags.
type Attr uint32

const (
	AttrHidden Attr = 1 << iota
	AttrSystem
	AttrReparsePoint
	AttrEncrypted
	AttrOffline
	AttrReadOnly
)

// Has reports whether any of the flags in mask are set.
func (a Attr) Has(mask Attr) bool { return a&mask != 0 }

func (a Attr) String() string {
	var parts []string
	names := []struct {
		flag Attr
		name string
	}{
		{AttrHidden, "hidden"},
		{AttrSystem, "system"},
		{AttrReparsePoint, "reparse"},
		{AttrEncrypted, "encrypted"},
		{AttrOffline, "offline"},
		{AttrReadOnly, "readonly"},
	}
	for _, n := range names {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// PathEntry is an immutable snapshot of a path on disk.
type PathEntry struct {
	FullPath string // Absolute, cleaned path
	Name     string // Final path component (or the volume label for roots)
	Ext      string // Extension including the leading dot, or ""
	Kind     Kind
	Attrs    Attr
	Size     int64 // -1 for anything but files
}

// NewPathEntry builds an entry for path with the given classification.
func NewPathEntry(path string, kind Kind, attrs Attr, size int64) PathEntry {
	name := filepath.Base(path)
	if name == string(filepath.Separator) || name == "." || strings.HasSuffix(path, ":"+string(filepath.Separator)) {
		name = path
	}
	ext := ""
	if kind != KindDirectory {
		ext = filepath.Ext(name)
	}
	if kind != KindFile {
		size = -1
	}
	return PathEntry{
		FullPath: path,
		Name:     name,
		Ext:      ext,
		Kind:     kind,
		Attrs:    attrs,
		Size:     size,
	}
}

func (p PathEntry) IsDir() bool  { return p.Kind == KindDirectory }
func (p PathEntry) IsFile() bool { return p.Kind == KindFile }
func (p PathEntry) Exists() bool { return p.Kind != KindMissing }

// Stem is the name without its final extension.
func (p PathEntry) Stem() string {
	return strings.TrimSuffix(p.Name, p.Ext)
}

// ExtNoDot is the extension without the leading dot.
func (p PathEntry) ExtNoDot() string {
	return strings.TrimPrefix(p.Ext, ".")
}
