package tree

import (
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lazytree/internal/fsys"
	"lazytree/internal/model"
)

func names(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

func nodeFor(m fsys.FS, path string) *Node {
	return NewNode(fsys.Classify(m, path))
}

func TestMaterializeOneChildPerEntry(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddDir("/data/b/c/d", 0)
	m.AddFile("/data/f.txt", 3, 0)
	m.AddFile("/data/pack.ZIP", 3, 0)
	m.AddFile("/data/b/g.log", 3, 0)

	b := NewBuilder(m, WithLogger(zaptest.NewLogger(t)))
	data := nodeFor(m, "/data")
	lazy := b.Materialize(data, 2)

	assert.ElementsMatch(t, []string{"b", "f.txt", "pack.ZIP"}, names(data.Children()))
	for _, c := range data.Children() {
		switch c.Name() {
		case "b":
			assert.True(t, c.IsDir())
		default:
			assert.True(t, c.IsFile())
		}
	}
	assert.True(t, data.Find("/data/pack.ZIP").IsArchive())
	assert.False(t, data.Find("/data/f.txt").IsArchive())

	sub := data.Find("/data/b")
	assert.ElementsMatch(t, []string{"c", "g.log"}, names(sub.Children()))

	c := data.Find("/data/b/c")
	require.NotNil(t, c)
	assert.True(t, c.HasLazyChildren())
	assert.Zero(t, c.Len(), "lazy nodes have no children yet")
	assert.Equal(t, []*Node{c}, lazy)
	assert.Equal(t, 0, m.Listings("/data/b/c"))
}

func TestMaterializeDepth(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddDir("/r/a/b", 0)

	t.Run("zero enumerates nothing", func(t *testing.T) {
		n := nodeFor(m, "/r")
		assert.Empty(t, NewBuilder(m).Materialize(n, 0))
		assert.Zero(t, n.Len())
	})

	t.Run("one marks children lazy", func(t *testing.T) {
		n := nodeFor(m, "/r")
		lazy := NewBuilder(m).Materialize(n, 1)
		assert.Equal(t, []string{"a"}, names(lazy))
		assert.True(t, lazy[0].HasLazyChildren())
	})

	t.Run("negative falls back to default", func(t *testing.T) {
		n := nodeFor(m, "/r")
		lazy := NewBuilder(m).Materialize(n, -1)
		assert.Equal(t, []string{"b"}, names(lazy))
	})

	t.Run("node preload depth wins when larger", func(t *testing.T) {
		n := nodeFor(m, "/r")
		n.SetPreloadDepth(3)
		lazy := NewBuilder(m).Materialize(n, 1)
		assert.Empty(t, lazy)
		assert.NotNil(t, n.Find("/r/a/b"))
	})
}

func TestMaterializeSkipsHiddenAndSystem(t *testing.T) {
	m := fsys.NewMem("/", "/mnt/ro")
	m.AddDir("/mnt/ro", model.AttrReadOnly|model.AttrHidden)
	m.AddFile("/mnt/ro/x.txt", 1, 0)
	m.AddDir("/d/.hidden", model.AttrHidden)
	m.AddFile("/d/.hidden/x.txt", 1, 0)
	m.AddDir("/d/link", model.AttrReparsePoint)
	m.AddFile("/d/link/x.txt", 1, 0)
	m.AddDir("/d/proc", model.AttrSystem)
	m.AddFile("/d/proc/x.txt", 1, 0)
	m.AddDir("/d/plain", 0)
	m.AddFile("/d/plain/x.txt", 1, 0)

	b := NewBuilder(m)
	d := nodeFor(m, "/d")
	b.Materialize(d, 3)

	for _, name := range []string{".hidden", "link"} {
		n := d.Find("/d/" + name)
		assert.True(t, n.Hidden(), name)
		assert.Zero(t, n.Len(), name)
	}
	proc := d.Find("/d/proc")
	assert.True(t, proc.System())
	assert.Zero(t, proc.Len())
	assert.Equal(t, 1, d.Find("/d/plain").Len())

	root := nodeFor(m, "/mnt/ro")
	b.Materialize(root, 2)
	assert.False(t, root.Hidden(), "volume roots are exempt")
	assert.Equal(t, 1, root.Len())

	arch := NewNode(model.NewPathEntry("/d/.hidden", model.KindDirectory, model.AttrHidden, -1))
	arch.SetArchive(true)
	b.Materialize(arch, 2)
	assert.False(t, arch.Hidden(), "archives are exempt")
	assert.Equal(t, 1, arch.Len())
}

func TestMaterializeKeepsPartialListing(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddFile("/p/a.txt", 1, 0).AddFile("/p/b.txt", 1, 0).AddFile("/p/c.txt", 1, 0)
	m.Fail("/p", 2, fs.ErrPermission)

	n := nodeFor(m, "/p")
	assert.NotPanics(t, func() { NewBuilder(m).Materialize(n, 2) })
	assert.Equal(t, []string{"a.txt", "b.txt"}, names(n.Children()))
}

func TestMaterializeIgnoresFilesAndSentinels(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddFile("/f.txt", 1, 0)
	b := NewBuilder(m)
	assert.Nil(t, b.Materialize(nodeFor(m, "/f.txt"), 2))
	assert.Nil(t, b.Materialize(Empty(), 2))
	assert.Nil(t, b.Materialize(nodeFor(m, "/missing"), 2))
	assert.Nil(t, b.Materialize(nil, 2))
}

func TestMaterializeDispatchesWrites(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddFile("/a/b/c.txt", 1, 0)

	var mu sync.Mutex
	calls := 0
	b := NewBuilder(m, WithDispatch(func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		fn()
	}))
	root := NewRoot(NewBus())
	a := nodeFor(m, "/a")
	require.NoError(t, root.AppendChild(a))

	var events int
	root.Bus().Subscribe(func(Change) { events++ })
	b.Materialize(a, 2)

	assert.Equal(t, 4, calls, "one flag write and one child batch per enumerated directory")
	assert.Positive(t, events)
	assert.NotNil(t, root.Find("/a/b/c.txt"))
}

func TestRefreshKeepsSurvivors(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddFile("/r/keep.txt", 1, 0)
	m.AddFile("/r/gone.txt", 1, 0)
	m.AddFile("/r/sub/x.txt", 1, 0)
	m.AddFile("/r/a.zip", 1, 0)

	b := NewBuilder(m)
	r := nodeFor(m, "/r")
	b.Materialize(r, 2)
	sub := r.Find("/r/sub")
	sub.SetExpanded(true)

	// a.zip has been replaced by its extraction
	zipNode := r.Find("/r/a.zip")
	extracted := dirNode("/tmp/a.zip")
	extracted.SetArchive(true)
	extracted.SetOrigin("/r/a.zip")
	require.NoError(t, r.ReplaceChild(zipNode, extracted))

	m.Remove("/r/gone.txt")
	m.AddDir("/r/new", 0)
	m.AddFile("/r/new.log", 1, 0)

	added, removed, lazy := b.Refresh(r)
	assert.ElementsMatch(t, []string{"new", "new.log"}, names(added))
	assert.Equal(t, []string{"gone.txt"}, names(removed))
	assert.Equal(t, []string{"new"}, names(lazy))
	assert.True(t, lazy[0].HasLazyChildren())

	assert.Same(t, sub, r.Find("/r/sub"), "surviving nodes are kept")
	assert.True(t, sub.Expanded())
	assert.Same(t, extracted, r.Find("/tmp/a.zip"))
	assert.Nil(t, r.Find("/r/a.zip"))
	assert.Nil(t, r.Find("/r/gone.txt"))
}

// gatedFS holds every ReadDir until all expected callers have listed.
type gatedFS struct {
	fsys.FS
	listed *sync.WaitGroup
}

func (g gatedFS) ReadDir(path string) ([]model.PathEntry, error) {
	entries, err := g.FS.ReadDir(path)
	g.listed.Done()
	g.listed.Wait()
	return entries, err
}

func TestOverlappingRefreshesAttachOnce(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddFile("/r/old.txt", 1, 0)
	r := nodeFor(m, "/r")
	NewBuilder(m).Materialize(r, 1)
	m.AddFile("/r/new.txt", 1, 0)

	const callers = 4
	listed := &sync.WaitGroup{}
	listed.Add(callers)
	var mu sync.Mutex
	b := NewBuilder(gatedFS{FS: m, listed: listed}, WithDispatch(func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}))

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Refresh(r)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"old.txt", "new.txt"}, names(r.Children()))
}
