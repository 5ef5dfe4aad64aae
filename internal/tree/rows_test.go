package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazytree/internal/fsys"
	"lazytree/internal/model"
)

func TestFlattenFollowsExpansion(t *testing.T) {
	m := fsys.NewMem("/")
	m.AddFile("/top/sub/deep.txt", 1, 0)
	m.AddFile("/top/a.txt", 1, 0)
	m.AddFile("/top/skip.ini", 1, 0)
	m.AddDir("/top/.git", model.AttrHidden)

	root := NewRoot(NewBus())
	top := nodeFor(m, "/top")
	require.NoError(t, root.AppendChild(top))
	NewBuilder(m).Materialize(top, 3)
	SortChildren(root)
	NewFilter(FilterSettings{Custom: true, CustomList: "txt"}).Apply(root)

	rows := Flatten(root)
	require.Len(t, rows, 1)
	assert.Equal(t, "top", rows[0].Name)
	assert.True(t, rows[0].HasKids)

	top.SetExpanded(true)
	rows = Flatten(root)
	var got []string
	for _, r := range rows {
		got = append(got, r.Name)
	}
	// .git is visible to the filter but hidden by its attributes
	assert.Equal(t, []string{"top", "sub", "a.txt"}, got)
	assert.Equal(t, 1, rows[1].Depth)
	assert.Equal(t, ID(top.Find("/top/a.txt")), rows[2].ID)
}

func TestSnap(t *testing.T) {
	root := NewRoot(nil)
	d := dirNode("/d")
	require.NoError(t, root.AppendChild(d))
	require.NoError(t, d.AppendChild(fileNode("/d/a.zip")))
	require.NoError(t, d.AppendChild(Empty()))
	d.SetAltName("alias")

	s := Snap(root)
	assert.Equal(t, "root", s.Kind)
	require.Len(t, s.Children, 1)
	assert.Equal(t, "alias", s.Children[0].AltName)
	require.Len(t, s.Children[0].Children, 1, "sentinels are not serialized")
	assert.Equal(t, "file", s.Children[0].Children[0].Kind)
	assert.Equal(t, int64(10), s.Children[0].Children[0].Size)
}
