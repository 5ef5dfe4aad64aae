package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"lazytree/internal/model"
	"lazytree/internal/tree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dirStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true) // Sky Blue/Cyan
	archiveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))           // Orange
	driveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

func (m AppModel) View() string {
	if m.ShowHelp {
		return m.renderHelpDialog()
	}
	if m.Loading {
		return fmt.Sprintf("\n  %s Building tree... please wait.\n", m.Spinner.View())
	}

	leftWidth, rightWidth, interiorHeight := m.layout()

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(activeColor).
		Render(m.renderTree(leftWidth, interiorHeight))

	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(m.DetailsViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right) + m.renderFooter()
}

// layout splits the window into the tree and details panels.
func (m AppModel) layout() (leftWidth, rightWidth, interiorHeight int) {
	netWidth := max(m.WindowSize.Width-6, 20)
	leftWidth = netWidth * 3 / 5
	rightWidth = netWidth - leftWidth

	// Box height includes borders; the footer takes the rest
	boxHeight := max(m.WindowSize.Height-6-len(m.Progress), 6)
	interiorHeight = max(boxHeight-2, 2)
	return leftWidth, rightWidth, interiorHeight
}

// syncDetails fits the details viewport to the window and fills it for the
// selected row.
func (m *AppModel) syncDetails() {
	_, rightWidth, interiorHeight := m.layout()
	m.DetailsViewport.Width = rightWidth
	m.DetailsViewport.Height = interiorHeight
	m.DetailsViewport.SetContent(m.renderDetails(rightWidth))
}

func (m AppModel) renderTree(width, height int) string {
	var sb strings.Builder
	sb.WriteString(headingStyle.Render("Tree"))
	if m.Busy {
		sb.WriteString(" " + m.Spinner.View())
	}
	sb.WriteString("\n\n")

	if m.Err != nil {
		sb.WriteString(fmt.Sprintf("Error: %v", m.Err))
		return sb.String()
	}
	if len(m.Rows) == 0 {
		sb.WriteString(dimStyle.Render("Nothing to show. Press 'a' to add a path."))
		return sb.String()
	}

	// Header takes 2 lines
	visible := max(height-2, 1)
	start, end := 0, len(m.Rows)
	if len(m.Rows) > visible {
		if m.SelectedIdx >= visible/2 {
			start = m.SelectedIdx - visible/2
		}
		if start+visible > len(m.Rows) {
			start = len(m.Rows) - visible
		}
		end = start + visible
	}

	for i := start; i < end; i++ {
		row := m.Rows[i]
		line := strings.Repeat("  ", row.Depth) + rowIcon(row) + " " + row.Name
		if len([]rune(line)) > width-2 {
			line = string([]rune(line)[:max(width-5, 1)]) + "..."
		}

		style := normalStyle
		switch {
		case i == m.SelectedIdx:
			style = selectedStyle
		case row.SystemDir:
			style = driveStyle
		case row.Archive:
			style = archiveStyle
		case row.IsDir:
			style = dirStyle
		}
		sb.WriteString(style.Render(line))
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func rowIcon(row tree.Row) string {
	switch {
	case row.SystemDir && !row.Expanded:
		return model.IconDrive
	case row.Archive && !row.IsDir:
		return model.IconArchive
	case !row.IsDir:
		return model.IconLeaf
	case row.Expanded:
		return model.IconExpanded
	case row.Lazy:
		return model.IconLazy
	default:
		return model.IconCollapsed
	}
}

func (m AppModel) renderDetails(width int) string {
	var sb strings.Builder
	sb.WriteString(headingStyle.Render("Details"))
	sb.WriteString("\n\n")

	row, ok := m.selected()
	if ok {
		sb.WriteString(fmt.Sprintf("Name:  %s\n", row.Name))
		sb.WriteString(fmt.Sprintf("Path:  %s\n", row.Path))
		switch {
		case row.IsDir:
			sb.WriteString("Kind:  directory\n")
		default:
			sb.WriteString("Kind:  file\n")
			sb.WriteString(fmt.Sprintf("Size:  %s\n", humanize.Bytes(uint64(max(row.Size, 0)))))
		}
		var flags []string
		if row.SystemDir {
			flags = append(flags, "volume root")
		}
		if row.Archive {
			if row.IsDir {
				flags = append(flags, "extracted archive")
			} else {
				flags = append(flags, "archive (x to extract)")
			}
		}
		if row.Lazy {
			flags = append(flags, "not loaded")
		}
		if len(flags) > 0 {
			sb.WriteString("Flags: " + strings.Join(flags, ", ") + "\n")
		}
	} else {
		sb.WriteString("No entry selected.\n")
	}

	sb.WriteString("\n" + headingStyle.Render("Filter") + "\n")
	if m.Filter.Custom {
		sb.WriteString("Custom: " + m.Filter.CustomList + "\n")
	} else {
		sb.WriteString("Default: " + describeCategories(m.Filter.Categories) + "\n")
	}

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	for i, l := range lines {
		if len([]rune(l)) > width {
			lines[i] = string([]rune(l)[:max(width-3, 1)]) + "..."
		}
	}
	return strings.Join(lines, "\n")
}

func (m AppModel) renderFooter() string {
	var sb strings.Builder
	for _, p := range m.Progress {
		sb.WriteString("\n")
		sb.WriteString(m.ProgressBar.ViewAs(p.Percent() / 100))
		sb.WriteString(dimStyle.Render(fmt.Sprintf(" %s %s", p.ElapsedFormatted(), shortName(p.Archive))))
	}

	switch m.InputMode {
	case inputFilter:
		sb.WriteString(fmt.Sprintf("\n\nExtensions: %s", m.InputBuffer.View()))
		return sb.String()
	case inputAdd:
		sb.WriteString(fmt.Sprintf("\n\nAdd path: %s", m.InputBuffer.View()))
		return sb.String()
	}

	help := "↑/↓: Navigate • →/←: Expand/Collapse • x: Extract • f: Filter • /: Extensions • 1-5: Categories • ?: Help • q: Quit"
	sb.WriteString("\n\n" + help)
	if m.Status != "" {
		sb.WriteString("\n" + statusStyle.Render(m.Status))
	}
	return sb.String()
}

func shortName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (m *AppModel) renderHelpDialog() string {
	w, h := m.WindowSize.Width, m.WindowSize.Height
	if w < 20 || h < 10 {
		return "Window too small"
	}

	helpWidth := min(max(w*80/100, 40), w-4)
	helpHeight := max(h-6, 5)

	lines := strings.Split(m.HelpContent, "\n")
	// Title and border
	contentHeight := helpHeight - 2

	startY := m.HelpScrollY
	if startY > len(lines)-contentHeight {
		startY = len(lines) - contentHeight
	}
	if startY < 0 {
		startY = 0
	}
	m.HelpScrollY = startY

	endY := min(startY+contentHeight, len(lines))
	content := strings.Join(lines[startY:endY], "\n")

	dialog := lipgloss.NewStyle().
		Width(helpWidth).
		Height(helpHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(titleStyle.Render("Help") + "\n" + content)

	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		dialog,
	)
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.Spinner.Tick, LoadCmd(m.Explorer, m.opts), tick())
}
