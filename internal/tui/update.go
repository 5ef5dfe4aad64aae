package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"lazytree/internal/explorer"
	"lazytree/internal/tree"
)

const tickInterval = 100 * time.Millisecond

// MsgLoaded indicates that the initial paths have been added.
type MsgLoaded struct{ Err error }

// MsgDone reports the end of a background operation.
type MsgDone struct {
	Status string
	Err    error
}

type msgTick time.Time

var categoryKeys = map[string]tree.Category{
	"1": tree.CategoryAny,
	"2": tree.CategoryArchive,
	"3": tree.CategoryTxt,
	"4": tree.CategoryIni,
	"5": tree.CategoryLog,
}

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.ProgressBar.Width = max(10, msg.Width/3)
		m.syncDetails()
		return m, nil

	case MsgLoaded:
		m.Loading = false
		m.Err = msg.Err
		m.refresh()
		return m, nil

	case MsgDone:
		if msg.Err != nil {
			m.Status = "Error: " + msg.Err.Error()
			m.log.Warn("operation failed", zap.Error(msg.Err))
		} else {
			m.Status = msg.Status
		}
		m.refresh()
		return m, nil

	case msgTick:
		if m.dirty.Swap(false) {
			m.refresh()
		}
		m.Busy = m.Explorer.Busy()
		progress := m.Explorer.Progress()
		if len(progress) != len(m.Progress) {
			m.Progress = progress
			m.syncDetails()
		}
		m.Progress = progress
		return m, tick()

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.InputMode != inputNone {
			return m.updateInput(msg)
		}
		if m.ShowHelp {
			return m.updateHelp(msg), nil
		}
		return m.updateTree(msg)
	}

	return m, cmd
}

func (m AppModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.Type {
	case tea.KeyEnter:
		value := m.InputBuffer.Value()
		mode := m.InputMode
		m.InputMode = inputNone
		m.InputBuffer.Blur()
		switch mode {
		case inputFilter:
			m.Explorer.SetCustomExtensions(value)
			m.Explorer.SetFilterMode(true)
			m.Filter = m.Explorer.Filter()
			m.Status = "Custom filter: " + m.Filter.CustomList
			m.refresh()
			return m, nil
		case inputAdd:
			if value == "" {
				return m, nil
			}
			m.Status = "Adding " + value
			return m, addPathsCmd(m.Explorer, []string{value}, true)
		}
		return m, nil
	case tea.KeyEsc:
		m.InputMode = inputNone
		m.InputBuffer.Blur()
		m.InputBuffer.SetValue("")
		return m, nil
	}
	m.InputBuffer, cmd = m.InputBuffer.Update(msg)
	return m, cmd
}

func (m AppModel) updateHelp(msg tea.KeyMsg) AppModel {
	switch msg.String() {
	case "?", "esc", "q":
		m.ShowHelp = false
		m.HelpScrollY = 0
	case "up", "k":
		if m.HelpScrollY > 0 {
			m.HelpScrollY--
		}
	case "down", "j":
		m.HelpScrollY++
	}
	return m
}

func (m AppModel) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if cat, ok := categoryKeys[key]; ok {
		cats := m.Explorer.SetCategory(cat, !m.Filter.Categories.Get(cat))
		m.Filter = m.Explorer.Filter()
		m.Status = fmt.Sprintf("Categories: %s", describeCategories(cats))
		m.refresh()
		return m, nil
	}

	page := max(1, m.WindowSize.Height-8)
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "pgup":
		m.move(-page)
	case "pgdown":
		m.move(page)
	case "home", "g":
		m.SelectedIdx = 0
		m.selectCurrent()
	case "end", "G":
		m.SelectedIdx = len(m.Rows) - 1
		m.selectCurrent()
	case "?":
		m.ShowHelp = true
	case "K":
		m.DetailsViewport.ScrollUp(1)
	case "J":
		m.DetailsViewport.ScrollDown(1)

	case "right", "l", "enter":
		row, ok := m.selected()
		if !ok || !row.IsDir {
			return m, nil
		}
		if row.Expanded {
			if row.HasKids {
				m.move(1)
			}
			return m, nil
		}
		if row.Lazy {
			m.Status = "Loading " + row.Name
		}
		return m, expandCmd(m.Explorer, row.Node)

	case "left", "h":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		if row.IsDir && row.Expanded {
			m.Explorer.Collapse(row.Node)
			m.refresh()
			return m, nil
		}
		for i := m.SelectedIdx - 1; i >= 0; i-- {
			if m.Rows[i].Depth < row.Depth {
				m.SelectedIdx = i
				m.selectCurrent()
				break
			}
		}

	case "x":
		row, ok := m.selected()
		if !ok || row.IsDir || !row.Archive {
			m.Status = "Not an archive"
			return m, nil
		}
		m.Status = "Extracting " + row.Name
		return m, extractCmd(m.Explorer, row.Node, row.Name)

	case "f":
		m.Explorer.SetFilterMode(!m.Filter.Custom)
		m.Filter = m.Explorer.Filter()
		if m.Filter.Custom {
			m.Status = "Custom filter: " + m.Filter.CustomList
		} else {
			m.Status = "Default filter: " + describeCategories(m.Filter.Categories)
		}
		m.refresh()

	case "/":
		m.InputMode = inputFilter
		m.InputBuffer.Placeholder = "txt; log; *"
		m.InputBuffer.SetValue(m.Filter.CustomList)
		m.InputBuffer.Focus()
		return m, textinput.Blink

	case "a":
		m.InputMode = inputAdd
		m.InputBuffer.Placeholder = "Path to add..."
		m.InputBuffer.SetValue("")
		m.InputBuffer.Focus()
		return m, textinput.Blink

	case "d":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.Explorer.Remove(row.Node); err != nil {
			m.Status = "Error: " + err.Error()
			return m, nil
		}
		m.Status = "Removed " + row.Path
		m.refresh()

	case "c":
		if err := m.Explorer.Clear(); err != nil {
			m.Status = "Error: " + err.Error()
			return m, nil
		}
		m.Status = "Cleared"
		m.refresh()

	case "r":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		dir := row.Path
		if !row.IsDir {
			dir = filepath.Dir(row.Path)
		}
		return m, refreshCmd(m.Explorer, dir)

	case "y":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := clipboard.WriteAll(row.Path); err != nil {
			m.Status = "Error: " + err.Error()
			return m, nil
		}
		m.Status = "Copied " + row.Path
	}

	return m, nil
}

func (m *AppModel) move(delta int) {
	if len(m.Rows) == 0 {
		return
	}
	m.SelectedIdx = min(max(m.SelectedIdx+delta, 0), len(m.Rows)-1)
	m.selectCurrent()
}

func (m *AppModel) selectCurrent() {
	if row, ok := m.selected(); ok {
		m.Explorer.Select(row.Node)
	}
	m.syncDetails()
}

// refresh re-reads the rows, keeping the cursor on the same node when it is
// still shown.
func (m *AppModel) refresh() {
	var current uint64
	if row, ok := m.selected(); ok {
		current = row.ID
	}
	m.Rows = m.Explorer.Rows()
	m.Filter = m.Explorer.Filter()
	defer m.syncDetails()
	for i, r := range m.Rows {
		if r.ID == current {
			m.SelectedIdx = i
			return
		}
	}
	if m.SelectedIdx >= len(m.Rows) {
		m.SelectedIdx = max(len(m.Rows)-1, 0)
	}
}

func describeCategories(c tree.Categories) string {
	var s string
	for _, cat := range []tree.Category{tree.CategoryAny, tree.CategoryArchive, tree.CategoryTxt, tree.CategoryIni, tree.CategoryLog} {
		mark := "-"
		if c.Get(cat) {
			mark = "+"
		}
		s += mark + cat.String() + " "
	}
	return s
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return msgTick(t) })
}

// LoadCmd adds the start-up paths in the background.
func LoadCmd(e *explorer.Explorer, opts Options) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if opts.LoadVolumeRoots {
			if err := e.LoadVolumeRoots(ctx); err != nil {
				return MsgLoaded{Err: err}
			}
		}
		if len(opts.Paths) > 0 {
			if err := e.AddPaths(ctx, opts.Paths, opts.ExpandTopLevel); err != nil {
				return MsgLoaded{Err: err}
			}
		}
		return MsgLoaded{}
	}
}

func addPathsCmd(e *explorer.Explorer, paths []string, expand bool) tea.Cmd {
	return func() tea.Msg {
		err := e.AddPaths(context.Background(), paths, expand)
		return MsgDone{Status: fmt.Sprintf("Added %d path(s)", len(paths)), Err: err}
	}
}

func expandCmd(e *explorer.Explorer, n *tree.Node) tea.Cmd {
	return func() tea.Msg {
		return MsgDone{Err: e.Expand(context.Background(), n)}
	}
}

func extractCmd(e *explorer.Explorer, n *tree.Node, name string) tea.Cmd {
	return func() tea.Msg {
		dest, err := e.ExtractArchive(context.Background(), n)
		if errors.Is(err, explorer.ErrExtractionInProgress) {
			return MsgDone{Status: name + " is already being extracted"}
		}
		return MsgDone{Status: "Extracted to " + dest, Err: err}
	}
}

func refreshCmd(e *explorer.Explorer, dir string) tea.Cmd {
	return func() tea.Msg {
		return MsgDone{Status: "Refreshed " + dir, Err: e.RefreshPath(context.Background(), dir)}
	}
}
