package tree

import (
	"strings"

	"go.uber.org/zap"

	"lazytree/internal/fsys"
	"lazytree/internal/model"
)

var archiveExts = map[string]bool{
	"zip": true,
	"rar": true,
	"gz":  true,
	"tar": true,
	"bz2": true,
	"7z":  true,
}

// IsArchiveName reports whether name has a known archive extension.
func IsArchiveName(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	return IsArchiveExt(name[i+1:])
}

// IsArchiveExt reports whether ext (without the dot) is a known archive type.
func IsArchiveExt(ext string) bool {
	return archiveExts[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// hiddenMask is the set of attributes that keep a directory from being entered.
const hiddenMask = model.AttrHidden | model.AttrReparsePoint | model.AttrEncrypted | model.AttrOffline | model.AttrReadOnly

// Builder populates directory nodes from a filesystem, a bounded number of
// levels at a time.
type Builder struct {
	fs           fsys.FS
	dispatch     func(func())
	log          *zap.Logger
	defaultDepth int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDispatch routes every write to nodes that may already be attached to
// a live tree through fn. fn must run the function it is given before
// returning.
func WithDispatch(fn func(func())) BuilderOption {
	return func(b *Builder) { b.dispatch = fn }
}

// WithLogger sets the logger used for swallowed enumeration errors.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// WithDefaultDepth overrides DefaultPreloadDepth.
func WithDefaultDepth(depth int) BuilderOption {
	return func(b *Builder) {
		if depth >= 0 {
			b.defaultDepth = depth
		}
	}
}

// NewBuilder returns a builder reading from fsys.
func NewBuilder(fsys fsys.FS, opts ...BuilderOption) *Builder {
	b := &Builder{
		fs:           fsys,
		dispatch:     func(fn func()) { fn() },
		log:          zap.NewNop(),
		defaultDepth: DefaultPreloadDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FS returns the filesystem the builder reads from.
func (b *Builder) FS() fsys.FS { return b.fs }

// Materialize enumerates n to the effective depth: the larger of n's preload
// depth and maxDepth, or the default depth when both are negative. It
// returns the directories created at the depth boundary, whose own children
// are deferred.
func (b *Builder) Materialize(n *Node, maxDepth int) []*Node {
	if n == nil || !n.IsDir() {
		return nil
	}
	depth := max(n.PreloadDepth(), maxDepth)
	if depth < 0 {
		depth = b.defaultDepth
	}
	var lazy []*Node
	b.read(n, depth, &lazy)
	return lazy
}

// Classify computes the hidden and system flags for an entry. Volume roots
// and archives are never hidden or system.
func (b *Builder) Classify(e model.PathEntry, archive bool) (hidden, system bool) {
	if archive || fsys.IsVolumeRoot(b.fs, e.FullPath) {
		return false, false
	}
	return e.Attrs.Has(hiddenMask), e.Attrs.Has(model.AttrSystem)
}

func (b *Builder) read(n *Node, remaining int, lazy *[]*Node) {
	remaining--

	entry := *n.entry
	hidden, system := b.Classify(entry, n.archive)
	b.dispatch(func() {
		n.setHidden(hidden)
		n.setSystem(system)
	})
	if !entry.IsDir() || hidden || system || remaining < 0 {
		return
	}

	entries, err := b.fs.ReadDir(entry.FullPath)
	if err != nil {
		if fsys.IsDenied(err) {
			b.log.Debug("enumeration stopped", zap.String("dir", entry.FullPath), zap.Error(err))
		} else {
			b.log.Warn("enumeration failed", zap.String("dir", entry.FullPath), zap.Error(err))
		}
	}

	children := make([]*Node, 0, len(entries))
	for _, e := range entries {
		c := NewNode(e)
		switch {
		case e.IsDir():
			if remaining == 0 {
				c.markLazy()
			}
		case e.IsFile():
			c.archive = IsArchiveName(e.Name)
		}
		children = append(children, c)
	}
	b.dispatch(func() {
		for _, c := range children {
			// Only fails when n is not a directory, ruled out above
			_ = n.AppendChild(c)
		}
	})

	for _, c := range children {
		if !c.IsDir() {
			continue
		}
		if remaining == 0 {
			*lazy = append(*lazy, c)
			continue
		}
		b.read(c, remaining, lazy)
	}
}

// Refresh re-lists the materialized directory n. Children whose entries are
// gone are detached, new entries are attached, and existing children keep
// their subtrees. New directories are created lazy and returned in lazy.
// A failed listing only adds. The comparison with the current children and
// the writes happen in one dispatch, so overlapping refreshes of the same
// directory never attach an entry twice.
func (b *Builder) Refresh(n *Node) (added, removed, lazy []*Node) {
	if n == nil || !n.IsDir() {
		return nil, nil, nil
	}
	dir := n.entry.FullPath
	entries, err := b.fs.ReadDir(dir)
	if err != nil {
		b.log.Debug("refresh listing incomplete", zap.String("dir", dir), zap.Error(err))
	}

	b.dispatch(func() {
		current := make(map[string]*Node, len(n.children))
		for _, c := range n.children {
			if c.entry == nil {
				continue
			}
			key := c.entry.FullPath
			if c.origin != "" {
				key = c.origin
			}
			current[key] = c
		}

		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			seen[e.FullPath] = true
			if c, ok := current[e.FullPath]; ok {
				if c.origin != "" || c.entry.Kind == e.Kind {
					continue
				}
				removed = append(removed, c)
			}
			c := NewNode(e)
			if e.IsDir() {
				c.markLazy()
				lazy = append(lazy, c)
			} else {
				c.archive = IsArchiveName(e.Name)
			}
			added = append(added, c)
		}
		if err == nil {
			for key, c := range current {
				if !seen[key] {
					removed = append(removed, c)
				}
			}
		}

		for _, c := range removed {
			_ = n.RemoveChild(c)
		}
		for _, c := range added {
			_ = n.AppendChild(c)
		}
	})
	return added, removed, lazy
}
