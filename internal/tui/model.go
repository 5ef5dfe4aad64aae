package tui

import (
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"lazytree/internal/archive"
	"lazytree/internal/explorer"
	"lazytree/internal/model"
	"lazytree/internal/tree"
)

type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputAdd
)

// Options are the start-up settings of the TUI.
type Options struct {
	Paths           []string
	ExpandTopLevel  bool
	LoadVolumeRoots bool
	Logger          *zap.Logger
}

// AppModel holds the TUI state.
type AppModel struct {
	// Data
	Explorer *explorer.Explorer
	Rows     []tree.Row
	Progress []archive.Progress
	Filter   tree.FilterSettings
	Loading  bool
	Busy     bool
	Err      error
	Status   string

	// UI State
	SelectedIdx int
	WindowSize  tea.WindowSizeMsg
	ShowHelp    bool
	HelpContent string
	HelpScrollY int

	// Input State
	InputMode   inputMode
	InputBuffer textinput.Model

	// Components
	Spinner         spinner.Model
	ProgressBar     progress.Model
	DetailsViewport viewport.Model

	opts  Options
	log   *zap.Logger
	dirty *atomic.Bool
	unsub func()
}

// InitialModel returns the initial state. The model redraws whenever the
// explorer's tree changes.
func InitialModel(e *explorer.Explorer, opts Options) AppModel {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	dirty := &atomic.Bool{}
	unsub := e.Subscribe(func(tree.Change) { dirty.Store(true) })

	return AppModel{
		Explorer:    e,
		Loading:     true,
		InputBuffer: ti,
		Spinner:     spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		ProgressBar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		HelpContent: model.Help(),
		Filter:      e.Filter(),
		opts:        opts,
		log:         log,
		dirty:       dirty,
		unsub:       unsub,
	}
}

// Close detaches the model from the explorer.
func (m AppModel) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

func (m AppModel) selected() (tree.Row, bool) {
	if m.SelectedIdx < 0 || m.SelectedIdx >= len(m.Rows) {
		return tree.Row{}, false
	}
	return m.Rows[m.SelectedIdx], true
}
