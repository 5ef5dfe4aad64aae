package explorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lazytree/internal/archive"
	"lazytree/internal/fsys"
	"lazytree/internal/tree"
)

func memFixture() *fsys.Mem {
	m := fsys.NewMem("/vol")
	m.AddDir("/data/b/c/d", 0)
	m.AddFile("/data/f.txt", 3, 0)
	m.AddFile("/data/pack.zip", 3, 0)
	m.AddFile("/data/b/g.log", 3, 0)
	m.AddDir("/other", 0)
	return m
}

func newExplorer(t *testing.T, opts Options) *Explorer {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	e := New(opts)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func topNames(e *Explorer) []string {
	var out []string
	_ = e.View(func(root *tree.Node) {
		for _, c := range root.Children() {
			out = append(out, c.Name())
		}
	})
	return out
}

func TestAddPathsSkipsMissingAndDuplicates(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	ctx := context.Background()

	require.NoError(t, e.AddPaths(ctx, []string{"/other", "/nope", "/data"}, false))
	require.NoError(t, e.AddPaths(ctx, []string{"/data"}, false))

	assert.Equal(t, []string{"data", "other"}, topNames(e))
	assert.False(t, e.Busy())
}

func TestAddPathsExpandsTopLevel(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	require.NoError(t, e.AddPaths(context.Background(), []string{"/data"}, true))

	n, err := e.Find("/data")
	require.NoError(t, err)
	assert.True(t, n.Expanded())
	assert.Equal(t, []string{"/data"}, e.ExpandedDirs())
}

func TestExpandLoadsLazyChildrenOnce(t *testing.T) {
	m := memFixture()
	e := newExplorer(t, Options{FS: m})
	ctx := context.Background()
	require.NoError(t, e.AddPaths(ctx, []string{"/data"}, false))

	c, err := e.Find("/data/b/c")
	require.NoError(t, err)
	require.True(t, c.HasLazyChildren())
	assert.Equal(t, 0, m.Listings("/data/b/c"))

	require.NoError(t, e.Expand(ctx, c))
	assert.False(t, c.HasLazyChildren())
	assert.Equal(t, 1, m.Listings("/data/b/c"))
	_, err = e.Find("/data/b/c/d")
	assert.NoError(t, err)

	e.Collapse(c)
	require.NoError(t, e.Expand(ctx, c))
	assert.Equal(t, 1, m.Listings("/data/b/c"))
}

func TestLoadVolumeRootsAndClear(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	ctx := context.Background()

	require.NoError(t, e.LoadVolumeRoots(ctx))
	assert.True(t, e.IsDefaultState())

	require.NoError(t, e.AddPaths(ctx, []string{"/data"}, false))
	assert.Equal(t, []string{"vol", "data"}, topNames(e), "volume roots sort first")
	assert.False(t, e.IsDefaultState())

	require.NoError(t, e.Clear())
	assert.Equal(t, []string{"vol"}, topNames(e))
	assert.True(t, e.IsDefaultState())

	vol, err := e.Find("/vol")
	require.NoError(t, err)
	assert.ErrorIs(t, e.Remove(vol), ErrProtected)
}

func TestReplaceOnAdd(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture(), ReplaceOnAdd: true})
	ctx := context.Background()

	require.NoError(t, e.AddPaths(ctx, []string{"/data"}, false))
	require.NoError(t, e.AddPaths(ctx, []string{"/other"}, false))
	assert.Equal(t, []string{"other"}, topNames(e))
}

func TestRemoveForgetsLazyRegistration(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	ctx := context.Background()
	require.NoError(t, e.AddPaths(ctx, []string{"/data"}, false))

	data, err := e.Find("/data")
	require.NoError(t, err)
	c, err := e.Find("/data/b/c")
	require.NoError(t, err)

	require.NoError(t, e.Remove(data))
	_, err = e.Find("/data")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.Expand(ctx, c))
	assert.True(t, c.HasLazyChildren(), "detached nodes are not materialized")
}

func TestFilterChangesReapply(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	require.NoError(t, e.AddPaths(context.Background(), []string{"/data"}, false))
	txt, _ := e.Find("/data/f.txt")
	zip, _ := e.Find("/data/pack.zip")
	require.True(t, txt.Visible())
	require.True(t, zip.Visible())

	e.SetCustomExtensions("txt")
	e.SetFilterMode(true)
	assert.True(t, txt.Visible())
	assert.False(t, zip.Visible())

	e.SetFilterMode(false)
	got := e.SetCategory(tree.CategoryArchive, false)
	assert.False(t, got.Archive)
	assert.False(t, zip.Visible())
	assert.True(t, txt.Visible())

	got = e.SetDefaultCategories(tree.Categories{})
	assert.Equal(t, tree.AllCategories(), got)
	assert.True(t, zip.Visible())
}

func TestSelectIsExclusive(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	require.NoError(t, e.AddPaths(context.Background(), []string{"/data"}, false))
	a, _ := e.Find("/data/f.txt")
	b, _ := e.Find("/data/b")

	e.Select(a)
	e.Select(b)
	assert.False(t, a.Selected())
	assert.True(t, b.Selected())
}

func TestRefreshPath(t *testing.T) {
	m := memFixture()
	e := newExplorer(t, Options{FS: m})
	ctx := context.Background()
	require.NoError(t, e.AddPaths(ctx, []string{"/data"}, false))

	m.AddFile("/data/new.ini", 1, 0)
	m.Remove("/data/f.txt")
	require.NoError(t, e.RefreshPath(ctx, "/data"))

	_, err := e.Find("/data/new.ini")
	assert.NoError(t, err)
	_, err = e.Find("/data/f.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.Find("/data/b/c")
	assert.NoError(t, err, "surviving subtrees are kept")
}

func TestSubscribeSeesChanges(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture()})
	var count atomic.Int32
	unsub := e.Subscribe(func(c tree.Change) {
		if c.Prop == tree.PropChildren {
			count.Add(1)
		}
	})
	defer unsub()

	require.NoError(t, e.AddPaths(context.Background(), []string{"/data"}, false))
	assert.Positive(t, count.Load())
}

// blockingExtractor creates dest/<archive name> once released.
type blockingExtractor struct {
	dir     string
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	once    sync.Once
}

func (b *blockingExtractor) Extract(_ context.Context, path string, sink archive.Sink) (string, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	<-b.release
	dest := filepath.Join(b.dir, filepath.Base(path))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dest, "inner.txt"), []byte("x"), 0o644); err != nil {
		return "", err
	}
	sink(archive.Progress{Archive: path, BytesRead: 1, TotalBytes: 1, Done: true})
	return dest, nil
}

func TestExtractArchiveReplacesNode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.zip"), []byte("zip"), 0o644))

	ex := &blockingExtractor{dir: t.TempDir(), started: make(chan struct{}), release: make(chan struct{})}
	e := newExplorer(t, Options{FS: fsys.NewOS(), Extractor: ex})
	ctx := context.Background()
	require.NoError(t, e.AddPaths(ctx, []string{dir}, true))

	pack, err := e.Find(filepath.Join(dir, "pack.zip"))
	require.NoError(t, err)
	parent := pack.Parent()
	idx := parent.IndexOf(pack)

	type result struct {
		dest string
		err  error
	}
	first := make(chan result, 1)
	go func() {
		dest, err := e.ExtractArchive(ctx, pack)
		first <- result{dest, err}
	}()
	<-ex.started

	assert.True(t, e.Extracting())
	_, err = e.ExtractArchive(ctx, pack)
	assert.ErrorIs(t, err, ErrExtractionInProgress)

	close(ex.release)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, int32(1), ex.calls.Load())
	assert.False(t, e.Extracting())
	assert.Empty(t, e.Progress())

	repl := parent.Child(idx)
	assert.Equal(t, r.dest, repl.Path())
	assert.True(t, repl.IsDir())
	assert.True(t, repl.IsArchive())
	assert.True(t, repl.Expanded())
	assert.Empty(t, repl.AltName())
	assert.Equal(t, filepath.Join(dir, "pack.zip"), repl.Origin())
	assert.Equal(t, -1, parent.IndexOf(pack))

	_, err = e.Find(filepath.Join(r.dest, "inner.txt"))
	assert.NoError(t, err)
}

func TestExtractArchiveRejectsNonArchives(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture(), Extractor: &blockingExtractor{}})
	require.NoError(t, e.AddPaths(context.Background(), []string{"/data"}, false))

	for _, path := range []string{"/data/f.txt", "/data/b"} {
		n, err := e.Find(path)
		require.NoError(t, err)
		_, err = e.ExtractArchive(context.Background(), n)
		assert.ErrorIs(t, err, ErrNotArchive, path)
	}
}

// failingExtractor reports an error after choosing a destination.
type failingExtractor struct{ dest string }

func (f failingExtractor) Extract(context.Context, string, archive.Sink) (string, error) {
	return f.dest, errors.New("zip: not a valid zip file")
}

func TestExtractArchiveFailureKeepsNode(t *testing.T) {
	e := newExplorer(t, Options{FS: memFixture(), Extractor: failingExtractor{dest: "/tmp/pack.zip"}})
	require.NoError(t, e.AddPaths(context.Background(), []string{"/data"}, false))
	n, err := e.Find("/data/pack.zip")
	require.NoError(t, err)

	dest, err := e.ExtractArchive(context.Background(), n)
	require.Error(t, err)
	assert.Equal(t, "/tmp/pack.zip", dest)
	assert.False(t, e.Extracting())
	assert.Empty(t, e.Progress())

	same, err := e.Find("/data/pack.zip")
	require.NoError(t, err)
	assert.Same(t, n, same, "the archive node stays in place")

	// Nothing was recorded, so a retry calls the extractor again
	dest, err = e.ExtractArchive(context.Background(), n)
	assert.Error(t, err)
	assert.Equal(t, "/tmp/pack.zip", dest)
}

func TestExtractArchiveWaitHonoursContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slow.zip"), []byte("zip"), 0o644))
	ex := &blockingExtractor{dir: t.TempDir(), started: make(chan struct{}), release: make(chan struct{})}
	e := newExplorer(t, Options{FS: fsys.NewOS(), Extractor: ex})
	require.NoError(t, e.AddPaths(context.Background(), []string{dir}, false))
	n, err := e.Find(filepath.Join(dir, "slow.zip"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.ExtractArchive(ctx, n)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(ex.release)
	assert.Eventually(t, func() bool { return !e.Extracting() }, time.Second, 5*time.Millisecond)
}

func TestAltDisplayName(t *testing.T) {
	cases := []struct {
		archive, dest, want string
	}{
		{"a.zip", "/tmp/a", ""},
		{"a.zip", "/tmp/a.zip", ""},
		{"A.ZIP", "/tmp/a.zip", ""},
		{"a.zip", "/tmp/a_extracted", "a_extracted"},
		{"a.zip", "/tmp/a.zip.000", "a.zip.000"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AltDisplayName(tc.archive, tc.dest), tc.dest)
	}
}

func TestQueueStops(t *testing.T) {
	q := NewQueue()
	ran := false
	assert.True(t, q.Do(func() { ran = true }))
	assert.True(t, ran)
	q.Stop()
	q.Stop()
	assert.False(t, q.Do(func() {}))
}

func TestClosedExplorer(t *testing.T) {
	e := New(Options{FS: memFixture(), Logger: zaptest.NewLogger(t)})
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.AddPaths(context.Background(), []string{"/data"}, false), ErrClosed)
	assert.ErrorIs(t, e.Clear(), ErrClosed)
}
