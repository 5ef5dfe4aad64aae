package archive

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractZip(t *testing.T) {
	src := t.TempDir()
	tmp := t.TempDir()
	path := filepath.Join(src, "bundle.zip")
	writeZip(t, path, map[string]string{
		"readme.txt":     "hello",
		"logs/app.log":   "line",
		"logs/app.log.1": "older",
		"empty/":         "",
		"deep/a/b/c.ini": "[x]",
	})

	var mu sync.Mutex
	var reports []Progress
	a := NewArchives(tmp, zaptest.NewLogger(t))
	dest, err := a.Extract(context.Background(), path, func(p Progress) {
		mu.Lock()
		reports = append(reports, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "bundle.zip"), dest)

	body, err := os.ReadFile(filepath.Join(dest, "logs", "app.log.1"))
	require.NoError(t, err)
	assert.Equal(t, "older", string(body))
	assert.DirExists(t, filepath.Join(dest, "empty"))
	assert.FileExists(t, filepath.Join(dest, "deep", "a", "b", "c.ini"))

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.True(t, last.Done)
	assert.Equal(t, 100.0, last.Percent())
	assert.Equal(t, 4, last.Iterations)
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i].Percent(), reports[i-1].Percent())
	}

	// A second extraction of the same archive gets its own directory
	again, err := a.Extract(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "bundle.zip.000"), again)
}

func TestExtractGzip(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "notes.txt.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("compressed notes"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dest, err := NewArchives(t.TempDir(), nil).Extract(context.Background(), path, nil)
	require.NoError(t, err)
	body, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "compressed notes", string(body))
}

func TestExtractFailures(t *testing.T) {
	src := t.TempDir()
	tmp := t.TempDir()
	a := NewArchives(tmp, zaptest.NewLogger(t))

	unknown := filepath.Join(src, "data.xyz")
	require.NoError(t, os.WriteFile(unknown, []byte("plain text, not an archive"), 0o644))
	_, err := a.Extract(context.Background(), unknown, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	corrupt := filepath.Join(src, "broken.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("PK\x03\x04 truncated"), 0o644))
	dest, err := a.Extract(context.Background(), corrupt, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, filepath.Join(tmp, "broken.zip"), dest, "the attempted destination is reported")
	assert.NoDirExists(t, dest)

	_, err = a.Extract(context.Background(), filepath.Join(src, "missing.zip"), nil)
	assert.Error(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed extractions leave nothing behind")
}

func TestExtractRejectsTraversal(t *testing.T) {
	src := t.TempDir()
	tmp := filepath.Join(t.TempDir(), "x")
	path := filepath.Join(src, "evil.zip")
	writeZip(t, path, map[string]string{"../../escaped.txt": "boom", "ok.txt": "fine"})

	_, _ = NewArchives(tmp, nil).Extract(context.Background(), path, nil)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(tmp), "escaped.txt"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(filepath.Dir(tmp)), "escaped.txt"))
}

func TestUniqueDir(t *testing.T) {
	parent := t.TempDir()
	first, err := UniqueDir(parent, "a.zip")
	require.NoError(t, err)
	second, err := UniqueDir(parent, "a.zip")
	require.NoError(t, err)
	third, err := UniqueDir(parent, "a.zip")
	require.NoError(t, err)

	assert.Equal(t, "a.zip", filepath.Base(first))
	assert.Equal(t, "a.zip.000", filepath.Base(second))
	assert.Equal(t, "a.zip.001", filepath.Base(third))
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.zip")
	require.NoError(t, os.Mkdir(dest, 0o755))

	_, ok := h.Lookup("/src/a.zip")
	assert.False(t, ok)

	h.Record("/src/a.zip", dest)
	got, ok := h.Lookup("/src/a.zip")
	assert.True(t, ok)
	assert.Equal(t, dest, got)
	assert.Equal(t, []string{dest}, h.Dirs())

	require.NoError(t, h.Cleanup())
	assert.NoDirExists(t, dest)
	_, ok = h.Lookup("/src/a.zip")
	assert.False(t, ok)

	// Entries whose directory vanished are forgotten
	h.Record("/src/b.zip", filepath.Join(dir, "gone"))
	_, ok = h.Lookup("/src/b.zip")
	assert.False(t, ok)
	assert.Empty(t, h.Dirs())
}

func TestProgressFormatting(t *testing.T) {
	p := Progress{BytesRead: 50, TotalBytes: 200, Elapsed: time.Hour + 2*time.Minute + 3*time.Second}
	assert.Equal(t, 25.0, p.Percent())
	assert.Equal(t, "01:02:03", p.ElapsedFormatted())

	assert.Equal(t, 100.0, Progress{BytesRead: 300, TotalBytes: 200}.Percent())
	assert.Equal(t, 0.0, Progress{}.Percent())
	assert.Equal(t, 100.0, Progress{Done: true}.Percent())
}

func TestTrackerOnlyReportsIncreases(t *testing.T) {
	var got []int64
	tr := newTracker("a.zip", 100, func(p Progress) { got = append(got, p.BytesRead) })
	tr.add(10)
	tr.add(0)
	tr.add(5)
	tr.add(200)
	tr.add(1)
	tr.finish()
	assert.Equal(t, []int64{10, 15, 100, 100}, got)
}
