// Package report renders a tree snapshot as plain or coloured text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"lazytree/internal/model"
	"lazytree/internal/tree"
)

// Options controls Generate.
type Options struct {
	// Color forces ANSI colours on or off regardless of the terminal.
	Color bool
	// Verbose includes hidden, system and filtered-out nodes with their
	// attributes.
	Verbose bool
}

// Stats counts the nodes of a snapshot.
type Stats struct {
	Roots       int
	Directories int
	Files       int
	Bytes       int64
	Archives    int
	Lazy        int
	Hidden      int
	Filtered    int
}

// Count walks s and tallies its nodes.
func Count(s tree.Snapshot) Stats {
	var st Stats
	st.Roots = len(s.Children)
	var walk func(n tree.Snapshot)
	walk = func(n tree.Snapshot) {
		for _, c := range n.Children {
			switch c.Kind {
			case model.KindDirectory.String():
				st.Directories++
			case model.KindFile.String():
				st.Files++
				st.Bytes += c.Size
			}
			if c.Archive {
				st.Archives++
			}
			if c.Lazy {
				st.Lazy++
			}
			if (c.Hidden || c.System) && !c.SystemDir {
				st.Hidden++
			}
			if !c.Visible {
				st.Filtered++
			}
			walk(c)
		}
	}
	walk(s)
	return st
}

type palette struct {
	title, dir, file, archive, drive, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		title:   color.New(color.Bold, color.FgMagenta),
		dir:     color.New(color.FgBlue, color.Bold),
		file:    color.New(color.Reset),
		archive: color.New(color.FgYellow),
		drive:   color.New(color.FgCyan, color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.title, p.dir, p.file, p.archive, p.drive, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Generate renders s as an indented tree with a summary header.
func Generate(s tree.Snapshot, opts Options) string {
	p := newPalette(opts.Color)
	st := Count(s)

	var sb strings.Builder
	sb.WriteString(p.title.Sprintf("lazytree report (version %s)", model.Version))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 40))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Roots:       %d\n", st.Roots)
	fmt.Fprintf(&sb, "Directories: %s\n", humanize.Comma(int64(st.Directories)))
	fmt.Fprintf(&sb, "Files:       %s (%s)\n", humanize.Comma(int64(st.Files)), humanize.Bytes(uint64(st.Bytes)))
	fmt.Fprintf(&sb, "Archives:    %d\n", st.Archives)
	fmt.Fprintf(&sb, "Not loaded:  %d\n", st.Lazy)
	if opts.Verbose {
		fmt.Fprintf(&sb, "Hidden:      %d\n", st.Hidden)
		fmt.Fprintf(&sb, "Filtered:    %d\n", st.Filtered)
	}
	sb.WriteString("\n")

	var walk func(n tree.Snapshot, depth int)
	walk = func(n tree.Snapshot, depth int) {
		for _, c := range n.Children {
			hidden := (c.Hidden || c.System) && !c.SystemDir
			if !opts.Verbose && (hidden || !c.Visible) {
				continue
			}
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(line(c, p, opts.Verbose, depth == 0))
			sb.WriteString("\n")
			walk(c, depth+1)
		}
	}
	walk(s, 0)
	return sb.String()
}

func line(n tree.Snapshot, p palette, verbose, top bool) string {
	isDir := n.Kind == model.KindDirectory.String()
	name := n.Name
	if top {
		name = n.Path
	}
	if n.AltName != "" {
		name += " (" + n.AltName + ")"
	}

	var icon string
	var c *color.Color
	switch {
	case n.SystemDir:
		icon, c = model.IconDrive, p.drive
	case n.Archive:
		icon, c = model.IconArchive, p.archive
	case isDir && n.Lazy:
		icon, c = model.IconLazy, p.dir
	case isDir:
		icon, c = model.IconExpanded, p.dir
	case n.Kind == model.KindMissing.String():
		icon, c = model.IconMissing, p.dim
	default:
		icon, c = model.IconLeaf, p.file
	}
	if (n.Hidden || n.System) && !n.SystemDir {
		icon, c = model.IconHidden, p.dim
	}
	if isDir && !top {
		name += "/"
	}

	out := icon + " " + c.Sprint(name)
	if !isDir && n.Kind == model.KindFile.String() {
		out += p.dim.Sprint("  " + humanize.Bytes(uint64(n.Size)))
	}
	if verbose {
		var tags []string
		if n.Attrs != "" {
			tags = append(tags, n.Attrs)
		}
		if !n.Visible {
			tags = append(tags, "filtered")
		}
		if len(tags) > 0 {
			out += p.dim.Sprint("  [" + strings.Join(tags, " ") + "]")
		}
	}
	return out
}

// WriteJSON encodes s as indented JSON.
func WriteJSON(w io.Writer, s tree.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
