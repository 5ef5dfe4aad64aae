package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visibleNames(f *Filter, files ...string) []string {
	var out []string
	for _, name := range files {
		n := fileNode("/d/" + name)
		n.SetArchive(IsArchiveName(name))
		if f.Visible(n) {
			out = append(out, name)
		}
	}
	return out
}

func TestDefaultModeOnlyTxt(t *testing.T) {
	f := NewFilter(FilterSettings{Categories: Categories{Txt: true}})
	assert.Equal(t, []string{"a.txt"}, visibleNames(f, "a.txt", "a.log", "a.bak", "a", "a.zip", "a.ini"))
}

func TestDefaultModeCategories(t *testing.T) {
	all := []string{"a.txt", "a.log", "a.bak", "a", "a.zip", "a.ini", "a.go"}

	f := NewFilter(DefaultFilterSettings())
	assert.Equal(t, all, visibleNames(f, all...))

	// Any on with txt off: everything except txt
	f = NewFilter(FilterSettings{Categories: Categories{Any: true, Archive: true, Ini: true, Log: true}})
	assert.Equal(t, []string{"a.log", "a.bak", "a", "a.zip", "a.ini", "a.go"}, visibleNames(f, all...))

	// Log off hides .log only; .bak still passes through Any
	f = NewFilter(FilterSettings{Categories: Categories{Any: true, Archive: true, Txt: true, Ini: true}})
	assert.Equal(t, []string{"a.txt", "a.bak", "a", "a.zip", "a.ini", "a.go"}, visibleNames(f, all...))
	assert.Equal(t, []string{"a.bak", "a.txt", "a.md"}, visibleNames(f, "a.bak", "a.log", "a.txt", "a.md"))

	f = NewFilter(FilterSettings{Categories: Categories{Log: true, Archive: true}})
	assert.Equal(t, []string{"a.log", "a.bak", "a.zip"}, visibleNames(f, all...))
}

func TestCustomMode(t *testing.T) {
	f := NewFilter(FilterSettings{Custom: true, CustomList: "log;txt"})
	assert.Equal(t, []string{"a.log", "b.TXT"}, visibleNames(f, "a.log", "a.ini", "b.TXT", "noext"))

	f.SetCustomList("*;log")
	assert.Equal(t, []string{"a.ini", "b.TXT"}, visibleNames(f, "a.log", "a.ini", "b.TXT", "noext"))

	f.SetCustomList(" .log ; ;.Ini ")
	assert.Equal(t, []string{"a.log", "a.ini"}, visibleNames(f, "a.log", "a.ini", "b.txt"))

	f.SetCustomList("*")
	assert.Equal(t, []string{"a.log", "b.txt"}, visibleNames(f, "a.log", "b.txt", "noext", "dot."))
}

func TestCategoryTransitions(t *testing.T) {
	onlyTxt := Categories{Txt: true}
	assert.Equal(t, AllCategories(), onlyTxt.With(CategoryTxt, false), "no dead state")
	assert.Equal(t, AllCategories(), onlyTxt.With(CategoryAny, true), "any re-enables everything")

	noAny := AllCategories().With(CategoryAny, false)
	assert.Equal(t, Categories{Archive: true, Txt: true, Ini: true, Log: true}, noAny)

	anyNoTxt := AllCategories().With(CategoryTxt, false)
	assert.Equal(t, Categories{Any: true, Archive: true, Ini: true, Log: true}, anyNoTxt)

	f := NewFilter(FilterSettings{Categories: onlyTxt})
	assert.Equal(t, AllCategories(), f.SetCategories(Categories{}))
	assert.Equal(t, AllCategories(), NewFilter(FilterSettings{}).Settings().Categories)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("TXT")
	require.NoError(t, err)
	assert.Equal(t, CategoryTxt, c)
	assert.Equal(t, "log", CategoryLog.String())
	_, err = ParseCategory("exe")
	assert.Error(t, err)
}

func TestApplyLeavesDirectoriesVisible(t *testing.T) {
	root := NewRoot(nil)
	d := dirNode("/d")
	require.NoError(t, root.AppendChild(d))
	require.NoError(t, d.AppendChild(fileNode("/d/a.txt")))
	require.NoError(t, d.AppendChild(fileNode("/d/a.ini")))
	require.NoError(t, d.AppendChild(dirNode("/d/sub.txt")))

	f := NewFilter(FilterSettings{Custom: true, CustomList: "ini"})
	f.Apply(root)

	assert.True(t, d.Visible())
	assert.False(t, d.Find("/d/a.txt").Visible())
	assert.True(t, d.Find("/d/a.ini").Visible())
	assert.True(t, d.Find("/d/sub.txt").Visible())
}
