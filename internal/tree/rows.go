package tree

import (
	"github.com/cespare/xxhash/v2"
)

// ID is a stable identifier for a node, derived from its path.
func ID(n *Node) uint64 {
	if n.entry == nil {
		return 0
	}
	return xxhash.Sum64String(n.entry.FullPath)
}

// Row is a flattened, display-ready copy of one node.
type Row struct {
	ID        uint64
	Node      *Node
	Depth     int
	Name      string
	Path      string
	Ext       string
	IsDir     bool
	Expanded  bool
	Lazy      bool
	Archive   bool
	SystemDir bool
	HasKids   bool
	Size      int64
}

// Shown reports whether n appears in views: it must pass the filter and,
// unless it is a volume root, must not be hidden or system.
func Shown(n *Node) bool {
	if !n.visible {
		return false
	}
	return n.systemDir || (!n.hidden && !n.system)
}

// Flatten lists the shown nodes below root in display order, descending into
// expanded nodes only.
func Flatten(root *Node) []Row {
	var rows []Row
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		for _, c := range n.children {
			if c.entry == nil || !Shown(c) {
				continue
			}
			rows = append(rows, Row{
				ID:        ID(c),
				Node:      c,
				Depth:     depth,
				Name:      c.DisplayName(),
				Path:      c.entry.FullPath,
				Ext:       c.entry.Ext,
				IsDir:     c.entry.IsDir(),
				Expanded:  c.expanded,
				Lazy:      c.lazy,
				Archive:   c.archive,
				SystemDir: c.systemDir,
				HasKids:   len(c.children) > 0 || c.lazy,
				Size:      c.entry.Size,
			})
			if c.expanded {
				walk(c, depth+1)
			}
		}
	}
	walk(root, 0)
	return rows
}

// Snapshot is a detached, serializable copy of a subtree.
type Snapshot struct {
	ID        uint64     `json:"id,string"`
	Name      string     `json:"name"`
	AltName   string     `json:"altName,omitempty"`
	Path      string     `json:"path"`
	Kind      string     `json:"kind"`
	Size      int64      `json:"size,omitempty"`
	Attrs     string     `json:"attrs,omitempty"`
	Expanded  bool       `json:"expanded,omitempty"`
	Visible   bool       `json:"visible"`
	Hidden    bool       `json:"hidden,omitempty"`
	System    bool       `json:"system,omitempty"`
	SystemDir bool       `json:"systemDir,omitempty"`
	Archive   bool       `json:"archive,omitempty"`
	Lazy      bool       `json:"lazy,omitempty"`
	Children  []Snapshot `json:"children,omitempty"`
}

// Snap copies n and its descendants. Sentinels are skipped.
func Snap(n *Node) Snapshot {
	s := Snapshot{
		ID:        ID(n),
		AltName:   n.altName,
		Expanded:  n.expanded,
		Visible:   n.visible,
		Hidden:    n.hidden,
		System:    n.system,
		SystemDir: n.systemDir,
		Archive:   n.archive,
		Lazy:      n.lazy,
	}
	if n.entry != nil {
		s.Name = n.entry.Name
		s.Path = n.entry.FullPath
		s.Kind = n.entry.Kind.String()
		if n.entry.Size > 0 {
			s.Size = n.entry.Size
		}
		s.Attrs = n.entry.Attrs.String()
	} else if n.isRoot {
		s.Kind = "root"
	}
	for _, c := range n.children {
		if c.entry == nil {
			continue
		}
		s.Children = append(s.Children, Snap(c))
	}
	return s
}
