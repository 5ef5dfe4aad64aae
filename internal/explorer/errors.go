package explorer

import "errors"

var (
	// ErrExtractionInProgress rejects a second extraction of a node that is
	// already being extracted.
	ErrExtractionInProgress = errors.New("extraction already in progress")
	// ErrNotArchive is returned when extraction is requested for a node that is
	// not an attached archive file.
	ErrNotArchive = errors.New("not an archive file")
	// ErrProtected is returned when removing a volume root.
	ErrProtected = errors.New("volume roots cannot be removed")
	// ErrNotFound is returned when no node matches a path or id.
	ErrNotFound = errors.New("node not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("explorer closed")
)
