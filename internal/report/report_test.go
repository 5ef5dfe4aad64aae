package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazytree/internal/fsys"
	"lazytree/internal/model"
	"lazytree/internal/tree"
)

func fixture(t *testing.T) tree.Snapshot {
	t.Helper()
	m := fsys.NewMem("/")
	m.AddFile("/data/readme.txt", 2048, 0)
	m.AddFile("/data/pack.zip", 10, 0)
	m.AddDir("/data/.cache", model.AttrHidden)
	m.AddDir("/data/sub/deep/deeper", 0)

	root := tree.NewRoot(tree.NewBus())
	n := tree.NewNode(fsys.Classify(m, "/data"))
	tree.NewBuilder(m).Materialize(n, 2)
	require.NoError(t, root.AppendChild(n))
	tree.SortChildren(root)
	f := tree.NewFilter(tree.FilterSettings{Custom: true, CustomList: "txt"})
	f.Apply(root)
	return tree.Snap(root)
}

func TestCount(t *testing.T) {
	st := Count(fixture(t))
	assert.Equal(t, 1, st.Roots)
	assert.Equal(t, 4, st.Directories)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, int64(2048+10), st.Bytes)
	assert.Equal(t, 1, st.Archives)
	assert.Equal(t, 1, st.Lazy)
	assert.Equal(t, 1, st.Hidden)
	assert.Equal(t, 1, st.Filtered)
}

func TestGeneratePlain(t *testing.T) {
	out := Generate(fixture(t), Options{})
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "lazytree report")
	assert.Contains(t, out, "/data\n")
	assert.Contains(t, out, "  "+model.IconExpanded+" sub/")
	assert.Contains(t, out, "readme.txt  2.0 kB")
	assert.NotContains(t, out, "pack.zip", "filtered out")
	assert.NotContains(t, out, ".cache")

	lines := strings.Split(out, "\n")
	var subIdx, readmeIdx int
	for i, l := range lines {
		switch {
		case strings.Contains(l, "sub/"):
			subIdx = i
		case strings.Contains(l, "readme.txt"):
			readmeIdx = i
		}
	}
	assert.Less(t, subIdx, readmeIdx, "directories before files")
}

func TestGenerateVerbose(t *testing.T) {
	out := Generate(fixture(t), Options{Verbose: true})
	assert.Contains(t, out, "pack.zip")
	assert.Contains(t, out, "[filtered]")
	assert.Contains(t, out, model.IconHidden+" .cache/")
	assert.Contains(t, out, "Hidden:      1")
}

func TestGenerateColor(t *testing.T) {
	out := Generate(fixture(t), Options{Color: true})
	assert.Contains(t, out, "\x1b[")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, fixture(t)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "root", got["kind"])
	assert.Len(t, got["children"], 1)
}
