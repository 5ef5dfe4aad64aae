package tree

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und, collate.IgnoreCase)
)

// invariantCompare is a culture-invariant, case-insensitive comparison.
func invariantCompare(a, b string) int {
	collatorMu.Lock()
	c := collator.CompareString(a, b)
	collatorMu.Unlock()
	return c
}

// Compare orders siblings: volume roots, then directories, then files; within
// each group by name, with numeric dotted suffixes compared as numbers.
// Sentinels sort last.
func Compare(a, b *Node) int {
	switch {
	case a.entry == nil && b.entry == nil:
		return 0
	case a.entry == nil:
		return 1
	case b.entry == nil:
		return -1
	}
	if a.systemDir != b.systemDir {
		if a.systemDir {
			return -1
		}
		return 1
	}
	if ad, bd := a.IsDir(), b.IsDir(); ad != bd {
		if ad {
			return -1
		}
		return 1
	}

	ea, eb := a.entry, b.entry
	if c := compareStems(ea.Stem(), eb.Stem(), ea.Name, eb.Name); c != 0 {
		return c
	}
	if ea.Name == eb.Name {
		return 0
	}
	// Equal stems: order by extension, so log.2 sorts before log.10.
	return compareSuffixes(ea.ExtNoDot(), eb.ExtNoDot(), ea.Name, eb.Name)
}

func compareStems(sa, sb, nameA, nameB string) int {
	ia, ib := strings.IndexByte(sa, '.'), strings.IndexByte(sb, '.')
	if ia < 0 || ib < 0 {
		return comparePunctuated(sa, sb)
	}
	if c := comparePunctuated(sa[:ia], sb[:ib]); c != 0 {
		return c
	}
	return compareSuffixes(sa[ia+1:], sb[ib+1:], nameA, nameB)
}

// compareSuffixes compares two integers numerically; anything else falls
// back to the full names.
func compareSuffixes(sa, sb, nameA, nameB string) int {
	x, errA := strconv.ParseInt(strings.TrimSpace(sa), 10, 64)
	y, errB := strconv.ParseInt(strings.TrimSpace(sb), 10, 64)
	if errA == nil && errB == nil {
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
	}
	if c := invariantCompare(nameA, nameB); c != 0 {
		return c
	}
	return strings.Compare(nameA, nameB)
}

// comparePunctuated puts names starting with punctuation after the others
// and otherwise compares case-insensitively.
func comparePunctuated(a, b string) int {
	ra, pa := leadingPunct(a)
	rb, pb := leadingPunct(b)
	switch {
	case pa && pb:
		return cmp.Compare(ra, rb)
	case pa:
		return 1
	case pb:
		return -1
	}
	return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
}

func leadingPunct(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, unicode.IsPunct(r)
}

// SortLevel stably sorts n's direct children only.
func SortLevel(n *Node) {
	if len(n.children) < 2 || slices.IsSortedFunc(n.children, Compare) {
		return
	}
	slices.SortStableFunc(n.children, Compare)
	n.bus.Publish(Change{Node: n, Prop: PropChildren})
}

// SortChildren stably sorts n's children and then, in pre-order, every
// descendant's children.
func SortChildren(n *Node) {
	SortLevel(n)
	for _, c := range n.children {
		SortChildren(c)
	}
}
