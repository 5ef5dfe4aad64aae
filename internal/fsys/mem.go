package fsys

import (
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"lazytree/internal/model"
)

// Mem is an in-memory FS. It reproduces attribute combinations and listing
// failures the host filesystem cannot be made to produce on demand.
type Mem struct {
	mu       sync.RWMutex
	entries  map[string]model.PathEntry
	children map[string][]string
	failures map[string]memFailure
	roots    []string
	listings map[string]int
}

type memFailure struct {
	after int
	err   error
}

// NewMem returns an empty in-memory filesystem with the given volume roots.
func NewMem(roots ...string) *Mem {
	m := &Mem{
		entries:  make(map[string]model.PathEntry),
		children: make(map[string][]string),
		failures: make(map[string]memFailure),
		listings: make(map[string]int),
	}
	for _, r := range roots {
		m.AddDir(r, 0)
		m.roots = append(m.roots, filepath.Clean(r))
	}
	return m
}

// AddDir adds a directory, creating missing parents.
func (m *Mem) AddDir(path string, attrs model.Attr) *Mem {
	m.add(model.NewPathEntry(filepath.Clean(path), model.KindDirectory, attrs, -1))
	return m
}

// AddFile adds a file, creating missing parents.
func (m *Mem) AddFile(path string, size int64, attrs model.Attr) *Mem {
	m.add(model.NewPathEntry(filepath.Clean(path), model.KindFile, attrs, size))
	return m
}

// Fail makes listings of dir return err after the first n entries.
func (m *Mem) Fail(dir string, n int, err error) *Mem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[filepath.Clean(dir)] = memFailure{after: n, err: err}
	return m
}

// Remove deletes path and everything below it.
func (m *Mem) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.removeLocked(path)
	parent := filepath.Dir(path)
	kids := m.children[parent]
	for i, k := range kids {
		if k == path {
			m.children[parent] = append(kids[:i:i], kids[i+1:]...)
			break
		}
	}
}

func (m *Mem) removeLocked(path string) {
	for _, c := range m.children[path] {
		m.removeLocked(c)
	}
	delete(m.children, path)
	delete(m.entries, path)
}

// Listings reports how many times dir has been listed.
func (m *Mem) Listings(dir string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listings[filepath.Clean(dir)]
}

func (m *Mem) add(e model.PathEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(e)
}

func (m *Mem) addLocked(e model.PathEntry) {
	if _, ok := m.entries[e.FullPath]; !ok {
		parent := filepath.Dir(e.FullPath)
		if parent != e.FullPath {
			if _, ok := m.entries[parent]; !ok {
				m.addLocked(model.NewPathEntry(parent, model.KindDirectory, 0, -1))
			}
			m.children[parent] = append(m.children[parent], e.FullPath)
		}
	}
	m.entries[e.FullPath] = e
}

func (m *Mem) Stat(path string) (model.PathEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	if e, ok := m.entries[path]; ok {
		return e, nil
	}
	return model.NewPathEntry(path, model.KindMissing, 0, -1), nil
}

func (m *Mem) ReadDir(dir string) ([]model.PathEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	m.listings[dir]++
	e, ok := m.entries[dir]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	if !e.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrInvalid}
	}
	names := append([]string(nil), m.children[dir]...)
	sort.Strings(names)
	out := make([]model.PathEntry, 0, len(names))
	f, failing := m.failures[dir]
	for i, n := range names {
		if failing && i >= f.after {
			return out, &fs.PathError{Op: "readdir", Path: dir, Err: f.err}
		}
		out = append(out, m.entries[n])
	}
	if failing && f.after >= len(names) {
		return out, &fs.PathError{Op: "readdir", Path: dir, Err: f.err}
	}
	return out, nil
}

func (m *Mem) VolumeRoots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.roots...)
}
