// Package explorer owns a live tree: it adds and removes roots, expands lazy
// directories, filters, and replaces archives with their extracted contents.
package explorer

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lazytree/internal/archive"
	"lazytree/internal/fsys"
	"lazytree/internal/metrics"
	"lazytree/internal/tree"
)

// Options configures an Explorer.
type Options struct {
	FS        fsys.FS
	Extractor archive.Extractor
	Logger    *zap.Logger

	// PreloadDepth is the number of levels built eagerly. Zero or less uses
	// tree.DefaultPreloadDepth.
	PreloadDepth int
	// Filter is the initial filter; the zero value means
	// tree.DefaultFilterSettings.
	Filter tree.FilterSettings

	// ReplaceOnAdd clears the tree before every AddPaths.
	ReplaceOnAdd bool
	// DeleteExtractedOnExit removes extraction directories on Close.
	DeleteExtractedOnExit bool
}

// Explorer is the application context around one tree.
type Explorer struct {
	opts      Options
	log       *zap.Logger
	fs        fsys.FS
	extractor archive.Extractor
	depth     int

	queue   *Queue
	bus     *tree.Bus
	root    *tree.Node
	builder *tree.Builder
	history *archive.History

	// Owned by the queue goroutine
	filter     *tree.Filter
	registered map[*tree.Node]bool
	pending    map[*tree.Node]chan struct{}
	selected   *tree.Node

	unsubscribe func()
	wg          sync.WaitGroup
	closeOnce   sync.Once

	mu         sync.Mutex
	closed     bool
	busy       int
	extracting int
	inflight   map[*tree.Node]bool
	progress   map[string]archive.Progress
}

// New creates an explorer. Call Close when done.
func New(opts Options) *Explorer {
	if opts.FS == nil {
		opts.FS = fsys.NewOS()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Extractor == nil {
		opts.Extractor = archive.NewArchives("", opts.Logger)
	}
	if opts.Filter == (tree.FilterSettings{}) {
		opts.Filter = tree.DefaultFilterSettings()
	}
	depth := opts.PreloadDepth
	if depth <= 0 {
		depth = -1
	}

	e := &Explorer{
		opts:       opts,
		log:        opts.Logger,
		fs:         opts.FS,
		extractor:  opts.Extractor,
		depth:      depth,
		queue:      NewQueue(),
		bus:        tree.NewBus(),
		history:    archive.NewHistory(),
		filter:     tree.NewFilter(opts.Filter),
		registered: make(map[*tree.Node]bool),
		pending:    make(map[*tree.Node]chan struct{}),
		inflight:   make(map[*tree.Node]bool),
		progress:   make(map[string]archive.Progress),
	}
	e.root = tree.NewRoot(e.bus)
	e.builder = tree.NewBuilder(opts.FS,
		tree.WithDispatch(func(fn func()) { e.queue.Do(fn) }),
		tree.WithLogger(opts.Logger),
	)
	e.unsubscribe = e.bus.Subscribe(e.onChange)
	return e
}

// Close waits for background work, stops the queue and, when configured,
// deletes extracted directories.
func (e *Explorer) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		e.wg.Wait()
		e.unsubscribe()
		e.queue.Stop()
		if e.opts.DeleteExtractedOnExit {
			err = e.history.Cleanup()
		}
	})
	return err
}

// Subscribe registers fn for every change in the tree. fn runs on the queue
// goroutine and must not call back into the Explorer.
func (e *Explorer) Subscribe(fn func(tree.Change)) func() {
	return e.bus.Subscribe(fn)
}

// View runs fn with read access to the tree.
func (e *Explorer) View(fn func(root *tree.Node)) error {
	if !e.queue.Do(func() { fn(e.root) }) {
		return ErrClosed
	}
	return nil
}

// Rows flattens the tree for display.
func (e *Explorer) Rows() []tree.Row {
	var rows []tree.Row
	_ = e.View(func(root *tree.Node) { rows = tree.Flatten(root) })
	return rows
}

// Snapshot copies the whole tree.
func (e *Explorer) Snapshot() tree.Snapshot {
	var s tree.Snapshot
	_ = e.View(func(root *tree.Node) { s = tree.Snap(root) })
	return s
}

// Find returns the node for path.
func (e *Explorer) Find(path string) (*tree.Node, error) {
	var n *tree.Node
	if err := e.View(func(root *tree.Node) { n = root.Find(path) }); err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

// FindID returns the node whose tree.ID is id.
func (e *Explorer) FindID(id uint64) (*tree.Node, error) {
	var found *tree.Node
	err := e.View(func(root *tree.Node) {
		root.Walk(func(n *tree.Node) bool {
			if found != nil {
				return false
			}
			if !n.IsRoot() && tree.ID(n) == id {
				found = n
				return false
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ExpandedDirs lists the paths of expanded directories.
func (e *Explorer) ExpandedDirs() []string {
	var dirs []string
	_ = e.View(func(root *tree.Node) {
		root.Walk(func(n *tree.Node) bool {
			if n.IsRoot() {
				return true
			}
			if n.IsDir() && n.Expanded() {
				dirs = append(dirs, n.Path())
				return true
			}
			return false
		})
	})
	return dirs
}

// AddPaths classifies each path, builds its subtree and appends it to the
// tree. Paths that do not exist, or are already top-level nodes, are skipped.
func (e *Explorer) AddPaths(ctx context.Context, paths []string, expandTopLevel bool) error {
	if e.opts.ReplaceOnAdd {
		if err := e.Clear(); err != nil {
			return err
		}
	}
	return e.run(ctx, func() {
		e.addRoots(paths, e.depth, false, expandTopLevel, "add")
	})
}

// LoadVolumeRoots adds every volume root as a collapsed system directory
// whose first level is loaded lazily.
func (e *Explorer) LoadVolumeRoots(ctx context.Context) error {
	return e.run(ctx, func() {
		e.addRoots(e.fs.VolumeRoots(), 1, true, false, "volumes")
	})
}

func (e *Explorer) addRoots(paths []string, depth int, systemDir, expand bool, trigger string) {
	start := time.Now()
	existing := make(map[string]bool)
	e.queue.Do(func() {
		for _, c := range e.root.Children() {
			existing[c.Path()] = true
		}
	})

	nodes := make([]*tree.Node, len(paths))
	lazies := make([][]*tree.Node, len(paths))
	var g errgroup.Group
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			entry := fsys.Classify(e.fs, p)
			if !entry.Exists() {
				e.log.Debug("skipping path", zap.String("path", p))
				return nil
			}
			if existing[entry.FullPath] {
				e.log.Debug("path already present", zap.String("path", entry.FullPath))
				return nil
			}
			n := tree.NewNode(entry)
			n.SetSystemDir(systemDir || fsys.IsVolumeRoot(e.fs, entry.FullPath))
			if entry.IsFile() {
				n.SetArchive(tree.IsArchiveName(entry.Name))
			}
			nodes[i] = n
			lazies[i] = e.builder.Materialize(n, depth)
			return nil
		})
	}
	_ = g.Wait()

	var lazyCount int
	e.queue.Do(func() {
		seen := make(map[string]bool)
		for i, n := range nodes {
			if n == nil || seen[n.Path()] {
				continue
			}
			seen[n.Path()] = true
			tree.SortChildren(n)
			e.filter.Apply(n)
			if err := e.root.AppendChild(n); err != nil {
				e.log.Warn("failed to attach", zap.String("path", n.Path()), zap.Error(err))
				continue
			}
			e.register(lazies[i])
			lazyCount += len(lazies[i])
			if expand && n.IsDir() {
				n.SetExpanded(true)
			}
		}
		tree.SortLevel(e.root)
		e.updateGauges()
	})
	metrics.RecordMaterialize(trigger, time.Since(start), lazyCount)
}

// Remove detaches n from the tree. Volume roots cannot be removed.
func (e *Explorer) Remove(n *tree.Node) error {
	var err error
	ok := e.queue.Do(func() {
		if n.SystemDir() && n.Parent() != nil && n.Parent().IsRoot() {
			err = ErrProtected
			return
		}
		parent := n.Parent()
		if parent == nil {
			err = ErrNotFound
			return
		}
		if err = parent.RemoveChild(n); err != nil {
			return
		}
		e.forget(n)
		e.updateGauges()
	})
	if !ok {
		return ErrClosed
	}
	return err
}

// Clear removes every top-level node except volume roots.
func (e *Explorer) Clear() error {
	ok := e.queue.Do(func() {
		for _, c := range e.root.Children() {
			if c.SystemDir() {
				continue
			}
			_ = e.root.RemoveChild(c)
			e.forget(c)
		}
		e.updateGauges()
	})
	if !ok {
		return ErrClosed
	}
	return nil
}

// IsDefaultState reports whether the tree holds nothing but volume roots and
// the default-mode filter shows everything.
func (e *Explorer) IsDefaultState() bool {
	def := true
	_ = e.View(func(root *tree.Node) {
		for _, c := range root.Children() {
			if !c.SystemDir() {
				def = false
				return
			}
		}
		s := e.filter.Settings()
		def = !s.Custom && s.Categories == tree.AllCategories()
	})
	return def
}

// Filter returns the current filter settings.
func (e *Explorer) Filter() tree.FilterSettings {
	var s tree.FilterSettings
	_ = e.View(func(*tree.Node) { s = e.filter.Settings() })
	return s
}

// SetFilterMode switches between custom and default mode.
func (e *Explorer) SetFilterMode(custom bool) {
	e.refilter(func() { e.filter.SetCustom(custom) })
}

// SetCustomExtensions sets the custom-mode extension list.
func (e *Explorer) SetCustomExtensions(list string) {
	e.refilter(func() { e.filter.SetCustomList(list) })
}

// SetDefaultCategories sets the default-mode flags and returns them after the
// transition rules are applied.
func (e *Explorer) SetDefaultCategories(c tree.Categories) tree.Categories {
	var out tree.Categories
	e.refilter(func() { out = e.filter.SetCategories(c) })
	return out
}

// SetCategory switches one default-mode category.
func (e *Explorer) SetCategory(cat tree.Category, on bool) tree.Categories {
	var out tree.Categories
	e.refilter(func() {
		out = e.filter.SetCategories(e.filter.Settings().Categories.With(cat, on))
	})
	return out
}

func (e *Explorer) refilter(change func()) {
	e.queue.Do(func() {
		change()
		e.filter.Apply(e.root)
	})
}

// Select makes n the only selected node.
func (e *Explorer) Select(n *tree.Node) {
	e.queue.Do(func() {
		if e.selected != nil && e.selected != n {
			e.selected.SetSelected(false)
		}
		e.selected = n
		if n != nil {
			n.SetSelected(true)
		}
	})
}

// Collapse marks n collapsed.
func (e *Explorer) Collapse(n *tree.Node) {
	e.queue.Do(func() { n.SetExpanded(false) })
}

// Expand marks n expanded. The first expansion of a node with lazy children
// loads them; Expand waits for that load.
func (e *Explorer) Expand(ctx context.Context, n *tree.Node) error {
	var wait chan struct{}
	ok := e.queue.Do(func() {
		n.SetExpanded(true)
		if e.registered[n] {
			e.startLoad(n)
		}
		wait = e.pending[n]
	})
	if !ok {
		return ErrClosed
	}
	if wait == nil {
		return nil
	}
	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh re-lists the materialized directory n, keeping surviving children.
func (e *Explorer) Refresh(ctx context.Context, n *tree.Node) error {
	var lazy bool
	if !e.queue.Do(func() { lazy = n.HasLazyChildren() || e.pending[n] != nil }) {
		return ErrClosed
	}
	if lazy || !n.IsDir() {
		return nil
	}
	return e.run(ctx, func() {
		start := time.Now()
		added, removed, lazy := e.builder.Refresh(n)
		e.queue.Do(func() {
			for _, r := range removed {
				e.forget(r)
			}
			for _, a := range added {
				e.filter.Apply(a)
			}
			tree.SortLevel(n)
			e.register(lazy)
			e.updateGauges()
		})
		metrics.RecordMaterialize("refresh", time.Since(start), len(lazy))
	})
}

// RefreshPath refreshes the node for dir, if the tree has one.
func (e *Explorer) RefreshPath(ctx context.Context, dir string) error {
	n, err := e.Find(dir)
	if err != nil {
		return err
	}
	return e.Refresh(ctx, n)
}

// Busy reports whether any operation is running.
func (e *Explorer) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy > 0
}

// Extracting reports whether any extraction is running.
func (e *Explorer) Extracting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extracting > 0
}

// Progress returns the latest report of every running extraction.
func (e *Explorer) Progress() []archive.Progress {
	e.mu.Lock()
	out := make([]archive.Progress, 0, len(e.progress))
	for _, p := range e.progress {
		out = append(out, p)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Archive < out[j].Archive })
	return out
}

// onChange starts lazy loads when a registered node is expanded. It runs on
// the queue.
func (e *Explorer) onChange(c tree.Change) {
	if c.Prop != tree.PropExpanded || !c.New || !e.registered[c.Node] {
		return
	}
	e.startLoad(c.Node)
}

// startLoad runs on the queue.
func (e *Explorer) startLoad(n *tree.Node) {
	delete(e.registered, n)
	if !n.ClaimLazy() {
		return
	}
	if !e.acquire() {
		return
	}
	done := make(chan struct{})
	e.pending[n] = done
	go func() {
		defer close(done)
		defer e.release()

		start := time.Now()
		lazy := e.builder.Materialize(n, e.depth)
		e.queue.Do(func() {
			tree.SortChildren(n)
			e.filter.Apply(n)
			e.register(lazy)
			delete(e.pending, n)
			e.updateGauges()
		})
		metrics.RecordMaterialize("expand", time.Since(start), len(lazy))
		e.log.Debug("expanded", zap.String("path", n.Path()), zap.Int("lazy", len(lazy)), zap.Duration("took", time.Since(start)))
	}()
}

// register runs on the queue.
func (e *Explorer) register(nodes []*tree.Node) {
	for _, n := range nodes {
		e.registered[n] = true
	}
}

// forget drops every registration below n. It runs on the queue.
func (e *Explorer) forget(n *tree.Node) {
	n.Walk(func(x *tree.Node) bool {
		delete(e.registered, x)
		if e.selected == x {
			e.selected = nil
		}
		return true
	})
}

// updateGauges runs on the queue.
func (e *Explorer) updateGauges() {
	count := -1
	e.root.Walk(func(*tree.Node) bool {
		count++
		return true
	})
	metrics.SetTreeNodes(count)
}

// run executes job in the background, counted as busy, and waits for it or
// for ctx. Cancelling ctx does not stop the job.
func (e *Explorer) run(ctx context.Context, job func()) error {
	if !e.acquire() {
		return ErrClosed
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer e.release()
		job()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Explorer) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.busy++
	e.wg.Add(1)
	metrics.SetBusy(e.busy, e.extracting)
	return true
}

func (e *Explorer) release() {
	e.mu.Lock()
	if e.busy > 0 {
		e.busy--
	}
	metrics.SetBusy(e.busy, e.extracting)
	e.mu.Unlock()
	e.wg.Done()
}
