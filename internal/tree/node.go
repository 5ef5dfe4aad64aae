// Package tree is the lazy filesystem tree: nodes, the depth-bounded
// builder that populates them, and the sort and filter passes run over them.
//
// Nodes are not safe for concurrent use. Callers that build on worker
// goroutines marshal every mutation onto one goroutine (see WithDispatch).
package tree

import (
	"path/filepath"

	"lazytree/internal/model"
)

// DefaultPreloadDepth is used when neither the node nor the caller sets a depth.
// It is the smallest depth that leaves room to mark grandchildren as lazy.
const DefaultPreloadDepth = 2

// Node is one element of the tree: a path entry, or a sentinel with no entry.
type Node struct {
	entry    *model.PathEntry
	parent   *Node
	isRoot   bool
	bus      *Bus
	children []*Node

	expanded  bool
	visible   bool
	selected  bool
	archive   bool
	systemDir bool
	hidden    bool
	system    bool
	lazy      bool

	preloadDepth int
	altName      string
	origin       string
}

// NewRoot returns the virtual root of a tree. Changes anywhere below it are
// published on bus.
func NewRoot(bus *Bus) *Node {
	return &Node{isRoot: true, bus: bus, expanded: true, visible: true, preloadDepth: -1}
}

// Empty returns a detached sentinel node.
func Empty() *Node {
	return &Node{visible: true, preloadDepth: -1}
}

// NewNode returns a detached node for entry.
func NewNode(entry model.PathEntry) *Node {
	e := entry
	return &Node{entry: &e, visible: true, preloadDepth: -1}
}

// Entry returns the node's path entry. The second result is false for sentinels.
func (n *Node) Entry() (model.PathEntry, bool) {
	if n.entry == nil {
		return model.PathEntry{}, false
	}
	return *n.entry, true
}

func (n *Node) IsSentinel() bool { return n.entry == nil }
func (n *Node) IsRoot() bool     { return n.isRoot }
func (n *Node) IsDir() bool      { return n.entry != nil && n.entry.IsDir() }
func (n *Node) IsFile() bool     { return n.entry != nil && n.entry.IsFile() }

// Path is the full path of the entry, or "" for sentinels.
func (n *Node) Path() string {
	if n.entry == nil {
		return ""
	}
	return n.entry.FullPath
}

// Name is the raw entry name, or "" for sentinels.
func (n *Node) Name() string {
	if n.entry == nil {
		return ""
	}
	return n.entry.Name
}

// DisplayName is the alternative name when set, otherwise the entry name.
func (n *Node) DisplayName() string {
	if n.altName != "" {
		return n.altName
	}
	return n.Name()
}

// Parent is nil for the virtual root and for detached nodes.
func (n *Node) Parent() *Node { return n.parent }

// Root returns the top-level ancestor of n: the node directly below the
// virtual root, or the topmost attached ancestor when n is detached.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil && !cur.parent.isRoot {
		cur = cur.parent
	}
	return cur
}

// Depth is the number of ancestors between n and the virtual root.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil && !p.isRoot; p = p.parent {
		d++
	}
	return d
}

// Bus is the change bus the node publishes on (nil while detached).
func (n *Node) Bus() *Bus { return n.bus }

func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) Len() int { return len(n.children) }

func (n *Node) Child(i int) *Node { return n.children[i] }

// IndexOf returns the position of c among n's children, or -1.
func (n *Node) IndexOf(c *Node) int {
	for i, x := range n.children {
		if x == c {
			return i
		}
	}
	return -1
}

func (n *Node) canHaveChildren() bool {
	return n.isRoot || n.IsDir()
}

// AppendChild attaches c as the last child of n.
func (n *Node) AppendChild(c *Node) error {
	return n.InsertChild(len(n.children), c)
}

// InsertChild attaches c at index i (clamped to the child range).
func (n *Node) InsertChild(i int, c *Node) error {
	if !n.canHaveChildren() {
		return ErrNotDirectory
	}
	if c.parent != nil || c.isRoot {
		return ErrAttached
	}
	if i < 0 {
		i = 0
	}
	if i > len(n.children) {
		i = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
	c.parent = n
	c.attachBus(n.bus)
	n.bus.Publish(Change{Node: n, Prop: PropChildren})
	return nil
}

// RemoveChild detaches c from n.
func (n *Node) RemoveChild(c *Node) error {
	i := n.IndexOf(c)
	if i < 0 {
		return ErrNotChild
	}
	n.children = append(n.children[:i], n.children[i+1:]...)
	c.parent = nil
	c.attachBus(nil)
	n.bus.Publish(Change{Node: n, Prop: PropChildren})
	return nil
}

// ReplaceChild inserts repl at old's index and then removes old.
func (n *Node) ReplaceChild(old, repl *Node) error {
	i := n.IndexOf(old)
	if i < 0 {
		return ErrNotChild
	}
	if err := n.InsertChild(i, repl); err != nil {
		return err
	}
	return n.RemoveChild(old)
}

func (n *Node) attachBus(b *Bus) {
	n.bus = b
	for _, c := range n.children {
		c.attachBus(b)
	}
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Find returns the first node below n (n included) with the given path.
func (n *Node) Find(path string) *Node {
	path = filepath.Clean(path)
	var found *Node
	n.Walk(func(x *Node) bool {
		if found != nil {
			return false
		}
		if x.entry != nil && x.entry.FullPath == path {
			found = x
			return false
		}
		return true
	})
	return found
}

func (n *Node) Expanded() bool  { return n.expanded }
func (n *Node) Visible() bool   { return n.visible }
func (n *Node) Selected() bool  { return n.selected }
func (n *Node) IsArchive() bool { return n.archive }
func (n *Node) SystemDir() bool { return n.systemDir }
func (n *Node) Hidden() bool    { return n.hidden }
func (n *Node) System() bool    { return n.system }

// HasLazyChildren reports whether the node has children that have not been
// enumerated yet.
func (n *Node) HasLazyChildren() bool { return n.lazy }

// ClaimLazy clears the lazy flag and reports whether the caller was the one
// to clear it. The flag is never set again.
func (n *Node) ClaimLazy() bool {
	if !n.lazy {
		return false
	}
	n.lazy = false
	return true
}

func (n *Node) markLazy() { n.lazy = true }

func (n *Node) PreloadDepth() int         { return n.preloadDepth }
func (n *Node) SetPreloadDepth(depth int) { n.preloadDepth = depth }

func (n *Node) AltName() string { return n.altName }

func (n *Node) SetAltName(name string) {
	if n.altName == name {
		return
	}
	n.altName = name
	n.bus.Publish(Change{Node: n, Prop: PropAltName})
}

// Origin is the archive path a synthetic extraction directory was created
// from, or "".
func (n *Node) Origin() string { return n.origin }

// SetOrigin records the archive an extraction directory replaces.
func (n *Node) SetOrigin(path string) { n.origin = path }

func (n *Node) SetArchive(v bool)   { n.archive = v }
func (n *Node) SetSystemDir(v bool) { n.systemDir = v }

func (n *Node) SetExpanded(v bool) { n.setFlag(&n.expanded, v, PropExpanded) }
func (n *Node) SetVisible(v bool)  { n.setFlag(&n.visible, v, PropVisible) }
func (n *Node) SetSelected(v bool) { n.setFlag(&n.selected, v, PropSelected) }
func (n *Node) setHidden(v bool)   { n.setFlag(&n.hidden, v, PropHidden) }
func (n *Node) setSystem(v bool)   { n.setFlag(&n.system, v, PropSystem) }

func (n *Node) setFlag(field *bool, v bool, p Prop) {
	if *field == v {
		return
	}
	old := *field
	*field = v
	n.bus.Publish(Change{Node: n, Prop: p, Old: old, New: v})
}
