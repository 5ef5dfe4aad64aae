package tree

import (
	"fmt"
	"strings"
)

// Category is one of the default-mode extension groups.
type Category int

const (
	CategoryAny Category = iota
	CategoryArchive
	CategoryTxt
	CategoryIni
	CategoryLog // also matches .bak
)

var categoryNames = []string{"any", "archive", "txt", "ini", "log"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// ParseCategory maps a name such as "txt" to its Category.
func ParseCategory(s string) (Category, error) {
	for i, n := range categoryNames {
		if strings.EqualFold(s, n) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Categories are the default-mode flags.
type Categories struct {
	Any     bool `json:"any" yaml:"any"`
	Archive bool `json:"archive" yaml:"archive"`
	Txt     bool `json:"txt" yaml:"txt"`
	Ini     bool `json:"ini" yaml:"ini"`
	Log     bool `json:"log" yaml:"log"`
}

// AllCategories has every flag set.
func AllCategories() Categories {
	return Categories{Any: true, Archive: true, Txt: true, Ini: true, Log: true}
}

func (c Categories) none() bool {
	return !c.Any && !c.Archive && !c.Txt && !c.Ini && !c.Log
}

// Get returns the flag for cat.
func (c Categories) Get(cat Category) bool {
	switch cat {
	case CategoryAny:
		return c.Any
	case CategoryArchive:
		return c.Archive
	case CategoryTxt:
		return c.Txt
	case CategoryIni:
		return c.Ini
	case CategoryLog:
		return c.Log
	}
	return false
}

// Transition returns the flags that result from moving from c to next.
// Turning Any on turns every category on, and a state with nothing enabled
// is replaced by everything enabled.
func (c Categories) Transition(next Categories) Categories {
	if next.Any && !c.Any {
		return AllCategories()
	}
	if next.none() {
		return AllCategories()
	}
	return next
}

// With returns the result of switching a single category.
func (c Categories) With(cat Category, on bool) Categories {
	next := c
	switch cat {
	case CategoryAny:
		next.Any = on
	case CategoryArchive:
		next.Archive = on
	case CategoryTxt:
		next.Txt = on
	case CategoryIni:
		next.Ini = on
	case CategoryLog:
		next.Log = on
	}
	return c.Transition(next)
}

// FilterSettings is the complete filter state.
type FilterSettings struct {
	Custom     bool       `json:"custom" yaml:"custom"`
	CustomList string     `json:"customList" yaml:"custom_list"`
	Categories Categories `json:"categories" yaml:"categories"`
}

// DefaultFilterSettings shows everything.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{CustomList: "*", Categories: AllCategories()}
}

// Filter decides which file nodes are visible.
type Filter struct {
	settings FilterSettings
	tokens   []string
	wildcard bool
}

// NewFilter returns a filter with s applied.
func NewFilter(s FilterSettings) *Filter {
	f := &Filter{}
	f.settings.Custom = s.Custom
	f.settings.Categories = AllCategories().Transition(s.Categories)
	f.SetCustomList(s.CustomList)
	return f
}

func (f *Filter) Settings() FilterSettings { return f.settings }

func (f *Filter) SetCustom(on bool) { f.settings.Custom = on }

// SetCustomList parses a semicolon separated extension list. A "*" token
// turns the list into an exclusion list.
func (f *Filter) SetCustomList(list string) {
	f.settings.CustomList = list
	f.tokens = f.tokens[:0]
	f.wildcard = false
	for _, tok := range strings.Split(list, ";") {
		tok = strings.TrimRight(strings.TrimLeft(tok, " ."), " ")
		switch tok {
		case "":
		case "*":
			f.wildcard = true
		default:
			f.tokens = append(f.tokens, tok)
		}
	}
}

// SetCategories applies the category transition rules and returns the
// resulting flags.
func (f *Filter) SetCategories(next Categories) Categories {
	f.settings.Categories = f.settings.Categories.Transition(next)
	return f.settings.Categories
}

// Visible reports whether n passes the filter. Only files can be filtered out.
func (f *Filter) Visible(n *Node) bool {
	if n.entry == nil || !n.entry.IsFile() {
		return true
	}
	ext := n.entry.ExtNoDot()
	if f.settings.Custom {
		return f.customVisible(ext)
	}
	return f.defaultVisible(strings.ToLower(ext), n.archive || IsArchiveExt(ext))
}

func (f *Filter) customVisible(ext string) bool {
	if ext == "" {
		return false
	}
	listed := false
	for _, t := range f.tokens {
		if strings.EqualFold(t, ext) {
			listed = true
			break
		}
	}
	if f.wildcard {
		return !listed
	}
	return listed
}

func (f *Filter) defaultVisible(ext string, archive bool) bool {
	c := f.settings.Categories
	if ext == "" {
		return c.Any
	}
	switch {
	case !c.Archive && archive,
		!c.Txt && ext == "txt",
		!c.Ini && ext == "ini",
		!c.Log && ext == "log":
		return false
	}
	// .bak counts as a log only when logs are shown
	isLog := ext == "log" || ext == "bak"
	return (c.Log && isLog) || (c.Txt && ext == "txt") || (c.Ini && ext == "ini") || (c.Archive && archive) || c.Any
}

// Apply sets the visibility of n and every node below it.
func (f *Filter) Apply(n *Node) {
	n.Walk(func(x *Node) bool {
		x.SetVisible(f.Visible(x))
		return true
	})
}
