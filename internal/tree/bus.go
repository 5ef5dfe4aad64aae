package tree

import (
	"sort"
	"sync"
)

// Prop names an observable node attribute.
type Prop int

const (
	PropExpanded Prop = iota
	PropVisible
	PropSelected
	PropHidden
	PropSystem
	PropChildren // child list changed (append, insert, remove, reorder)
	PropAltName
)

func (p Prop) String() string {
	switch p {
	case PropExpanded:
		return "expanded"
	case PropVisible:
		return "visible"
	case PropSelected:
		return "selected"
	case PropHidden:
		return "hidden"
	case PropSystem:
		return "system"
	case PropChildren:
		return "children"
	case PropAltName:
		return "altName"
	}
	return "unknown"
}

// Change is published whenever an observable attribute of a node changes.
// Old and New are only meaningful for boolean properties.
type Change struct {
	Node *Node
	Prop Prop
	Old  bool
	New  bool
}

// Bus delivers node changes to subscribers, synchronously and in
// subscription order, on the goroutine that made the change.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Change)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers c to every subscriber. A nil bus drops the change.
func (b *Bus) Publish(c Change) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
