package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// History remembers where archives were extracted so a second request for the
// same archive reuses the directory.
type History struct {
	mu   sync.Mutex
	dirs map[string]string
}

func NewHistory() *History {
	return &History{dirs: make(map[string]string)}
}

// Lookup returns the earlier destination for archive if it still exists.
func (h *History) Lookup(archive string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dest, ok := h.dirs[archive]
	if !ok {
		return "", false
	}
	if info, err := os.Stat(dest); err != nil || !info.IsDir() {
		delete(h.dirs, archive)
		return "", false
	}
	return dest, true
}

func (h *History) Record(archive, dest string) {
	h.mu.Lock()
	h.dirs[archive] = dest
	h.mu.Unlock()
}

// Dirs lists every recorded destination.
func (h *History) Dirs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.dirs))
	for _, d := range h.dirs {
		out = append(out, d)
	}
	return out
}

// Cleanup deletes every recorded destination and forgets them.
func (h *History) Cleanup() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for archive, dest := range h.dirs {
		if err := os.RemoveAll(dest); err != nil {
			errs = append(errs, err)
		}
		delete(h.dirs, archive)
	}
	return errors.Join(errs...)
}

// UniqueDir creates and returns parent/name, or parent/name.000,
// parent/name.001 and so on when that is taken.
func UniqueDir(parent, name string) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	candidate := filepath.Join(parent, name)
	for i := 0; i <= 999; i++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = filepath.Join(parent, fmt.Sprintf("%s.%03d", name, i))
	}
	return "", fmt.Errorf("no free directory name for %s in %s", name, parent)
}
