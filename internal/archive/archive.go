// Package archive extracts archive files into directories the tree can show.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrUnsupportedFormat is returned for files no known format can read.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Extractor unpacks the archive at path and returns the directory it was
// unpacked into. On failure the directory it attempted is returned when one
// had been chosen.
type Extractor interface {
	Extract(ctx context.Context, path string, sink Sink) (string, error)
}

const bufferSize = 64 * 1024

// Archives is the Extractor backed by github.com/mholt/archives. Concurrent
// requests for the same path share one extraction.
type Archives struct {
	tempDir string
	log     *zap.Logger
	group   singleflight.Group
}

// NewArchives extracts below tempDir (os.TempDir()/lazytree when empty).
func NewArchives(tempDir string, log *zap.Logger) *Archives {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "lazytree")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Archives{tempDir: tempDir, log: log}
}

// TempDir is the directory extractions are created in.
func (a *Archives) TempDir() string { return a.tempDir }

func (a *Archives) Extract(ctx context.Context, path string, sink Sink) (string, error) {
	v, err, shared := a.group.Do(path, func() (any, error) {
		return a.extract(ctx, path, sink)
	})
	if shared {
		a.log.Debug("extraction shared", zap.String("archive", path))
	}
	dest, _ := v.(string)
	return dest, err
}

func (a *Archives) extract(ctx context.Context, path string, sink Sink) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	tr := newTracker(path, info.Size(), sink)
	src := &countingFile{File: f, tr: tr}

	format, input, err := archives.Identify(ctx, path, src)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
		}
		return "", fmt.Errorf("failed to identify archive format: %w", err)
	}
	tr.reset()

	ex, isExtractor := format.(archives.Extractor)
	dc, isDecompressor := format.(archives.Decompressor)
	if !isExtractor && !isDecompressor {
		return "", fmt.Errorf("%s (%T): %w", filepath.Base(path), format, ErrUnsupportedFormat)
	}

	dest, err := UniqueDir(a.tempDir, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	a.log.Info("extracting", zap.String("archive", path), zap.String("dest", dest), zap.String("format", fmt.Sprintf("%T", format)))
	if isExtractor {
		err = ex.Extract(ctx, input, func(ctx context.Context, fi archives.FileInfo) error {
			return a.writeEntry(dest, fi, tr)
		})
	} else {
		err = a.decompress(dc, input, dest, filepath.Base(path), tr)
	}
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			a.log.Warn("failed to remove partial extraction", zap.String("dest", dest), zap.Error(rmErr))
		}
		return dest, fmt.Errorf("extraction failed: %w", err)
	}

	tr.finish()
	return dest, nil
}

// writeEntry writes one archive entry below dest, refusing names that would
// escape it.
func (a *Archives) writeEntry(dest string, fi archives.FileInfo, tr *tracker) error {
	target := filepath.Clean(filepath.Join(dest, fi.NameInArchive))
	root := filepath.Clean(dest) + string(os.PathSeparator)
	if !strings.HasPrefix(target+string(os.PathSeparator), root) {
		a.log.Warn("path traversal detected, skipping", zap.String("entry", fi.NameInArchive))
		return nil
	}

	if fi.IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		a.log.Debug("skipping symlink", zap.String("entry", fi.NameInArchive))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}

	r, err := fi.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fi.NameInArchive, err)
	}
	defer r.Close()

	if err := writeFile(target, r, fi.Mode()&0o777|0o200); err != nil {
		return err
	}
	if err := os.Chtimes(target, fi.ModTime(), fi.ModTime()); err != nil {
		a.log.Debug("failed to set timestamps", zap.String("file", target), zap.Error(err))
	}
	tr.file()
	return nil
}

// decompress handles single-file compression such as notes.txt.gz.
func (a *Archives) decompress(dc archives.Decompressor, input io.Reader, dest, name string, tr *tracker) error {
	rc, err := dc.OpenReader(input)
	if err != nil {
		return err
	}
	defer rc.Close()

	out := strings.TrimSuffix(name, filepath.Ext(name))
	if out == "" {
		out = "data"
	}
	if err := writeFile(filepath.Join(dest, out), rc, 0o644); err != nil {
		return err
	}
	tr.file()
	return nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	w, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}
	if _, err := io.CopyBuffer(w, r, make([]byte, bufferSize)); err != nil {
		w.Close()
		os.Remove(path)
		return fmt.Errorf("failed to copy file data: %w", err)
	}
	return w.Close()
}

// countingFile reports every byte read from the archive file to a tracker.
// It keeps the io.ReaderAt and io.Seeker methods formats such as zip need.
type countingFile struct {
	*os.File
	tr *tracker
}

func (c *countingFile) Read(p []byte) (int, error) {
	n, err := c.File.Read(p)
	c.tr.add(n)
	return n, err
}

func (c *countingFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.File.ReadAt(p, off)
	c.tr.add(n)
	return n, err
}
