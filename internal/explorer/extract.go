package explorer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"lazytree/internal/archive"
	"lazytree/internal/fsys"
	"lazytree/internal/metrics"
	"lazytree/internal/tree"
)

// ExtractArchive extracts the archive file n and replaces it in the tree with
// a directory node for the extracted contents. It returns the destination,
// which on a failed extraction is the directory that was attempted (or "").
func (e *Explorer) ExtractArchive(ctx context.Context, n *tree.Node) (string, error) {
	var path, name string
	var valid bool
	if !e.queue.Do(func() {
		valid = n.IsFile() && n.IsArchive() && n.Parent() != nil
		path, name = n.Path(), n.Name()
	}) {
		return "", ErrClosed
	}
	if !valid {
		return "", ErrNotArchive
	}
	if !fsys.Classify(e.fs, path).IsFile() {
		return "", fmt.Errorf("%w: %s no longer exists", ErrNotArchive, path)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}
	if e.inflight[n] {
		e.mu.Unlock()
		return "", ErrExtractionInProgress
	}
	e.inflight[n] = true
	e.extracting++
	e.busy++
	e.wg.Add(1)
	metrics.SetBusy(e.busy, e.extracting)
	e.mu.Unlock()

	type result struct {
		dest string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		dest, err := e.extract(context.WithoutCancel(ctx), path)
		if err == nil {
			err = e.replaceWithExtractedContents(n, dest, name)
		}
		e.finishExtraction(n, path)
		done <- result{dest, err}
	}()

	select {
	case r := <-done:
		return r.dest, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Explorer) extract(ctx context.Context, path string) (string, error) {
	if dest, ok := e.history.Lookup(path); ok {
		e.log.Info("reusing extraction", zap.String("archive", path), zap.String("dest", dest))
		return dest, nil
	}
	start := time.Now()
	dest, err := e.extractor.Extract(ctx, path, func(p archive.Progress) {
		e.mu.Lock()
		e.progress[path] = p
		e.mu.Unlock()
	})
	if err != nil {
		metrics.RecordExtraction("error", 0)
		e.log.Warn("extraction failed", zap.String("archive", path), zap.String("dest", dest), zap.Error(err))
		return dest, err
	}
	var size int64
	if entry, err := e.fs.Stat(path); err == nil {
		size = entry.Size
	}
	metrics.RecordExtraction("ok", size)
	e.history.Record(path, dest)
	e.log.Info("extracted", zap.String("archive", path), zap.String("dest", dest), zap.Duration("took", time.Since(start)))
	return dest, nil
}

func (e *Explorer) finishExtraction(n *tree.Node, path string) {
	e.mu.Lock()
	delete(e.inflight, n)
	delete(e.progress, path)
	if e.extracting > 0 {
		e.extracting--
	}
	if e.busy > 0 {
		e.busy--
	}
	metrics.SetBusy(e.busy, e.extracting)
	e.mu.Unlock()
	e.wg.Done()
}

// replaceWithExtractedContents builds the directory dest and swaps it in for
// the archive node.
func (e *Explorer) replaceWithExtractedContents(n *tree.Node, dest, archiveName string) error {
	entry := fsys.Classify(e.fs, dest)
	if !entry.IsDir() {
		return fmt.Errorf("extracted contents missing: %s", dest)
	}
	var archivePath string
	e.queue.Do(func() { archivePath = n.Path() })

	repl := tree.NewNode(entry)
	repl.SetArchive(true)
	repl.SetOrigin(archivePath)
	repl.SetAltName(AltDisplayName(archiveName, dest))

	lazy := e.builder.Materialize(repl, e.depth)

	var err error
	ok := e.queue.Do(func() {
		tree.SortChildren(repl)
		e.filter.Apply(repl)
		parent := n.Parent()
		if parent == nil {
			err = fmt.Errorf("%w: %s was removed", ErrNotFound, archivePath)
			return
		}
		if err = parent.ReplaceChild(n, repl); err != nil {
			return
		}
		e.forget(n)
		e.register(lazy)
		repl.SetExpanded(true)
		e.updateGauges()
	})
	if !ok {
		return ErrClosed
	}
	return err
}

// AltDisplayName is the name shown next to an extracted directory: the base
// of dest, or empty when it only repeats the archive name or its stem.
func AltDisplayName(archiveName, dest string) string {
	base := filepath.Base(dest)
	stem := strings.TrimSuffix(archiveName, filepath.Ext(archiveName))
	if strings.EqualFold(base, archiveName) || strings.EqualFold(base, stem) {
		return ""
	}
	return base
}
