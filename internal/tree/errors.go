package tree

import "errors"

var (
	// ErrNotDirectory is returned when children are attached to a file or sentinel node.
	ErrNotDirectory = errors.New("node cannot have children")
	// ErrAttached is returned when a node that already has a parent is attached again.
	ErrAttached = errors.New("node already has a parent")
	// ErrNotChild is returned when a node is not a direct child of the receiver.
	ErrNotChild = errors.New("node is not a child")
)
