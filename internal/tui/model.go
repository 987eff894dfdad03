package tui

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/view"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeEditor
	modeAbout
)

const (
	fieldName = iota
	fieldQuantity
)

type (
	itemsLoadedMsg struct {
		items []model.Item
		err   error
	}
	savedMsg struct {
		res inventory.Result
		err error
	}
	gateMsg       auth.GateState
	reloadTickMsg struct{}
	beginGateMsg  struct{}
)

type appModel struct {
	ctx   context.Context
	inv   view.Inventory
	state *view.State
	log   *zap.Logger

	keys keyMap
	help help.Model

	mode   mode
	cursor int

	search textinput.Model
	name   textinput.Model
	qty    textinput.Model
	focus  int

	busy   bool
	status string

	gate      *auth.Gate
	gateState auth.GateState

	eventsPath     string
	lastEventsTime time.Time

	width  int
	height int
}

func newInput(prompt, placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func newAppModel(ctx context.Context, inv view.Inventory, opts Options, gate *auth.Gate) appModel {
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := appModel{
		ctx:        ctx,
		inv:        inv,
		state:      view.New(opts.Locale),
		log:        log,
		keys:       defaultKeyMap(),
		help:       help.New(),
		search:     newInput("/ ", "search items", 200),
		name:       newInput("", "name", 200),
		qty:        newInput("", "quantity", 12),
		gate:       gate,
		gateState:  auth.GateState{Status: auth.StatusLoading},
		eventsPath: opts.EventsPath,
		width:      80,
		height:     24,
	}
	m.lastEventsTime = fileModTime(m.eventsPath)
	return m
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchCmd()}
	if m.gate != nil {
		cmds = append(cmds, func() tea.Msg { return beginGateMsg{} })
	}
	if m.eventsPath != "" {
		cmds = append(cmds, tickReload())
	}
	return tea.Batch(cmds...)
}

// gated reports whether the list is hidden behind a sign-in.
func (m appModel) gated() bool {
	return m.gate != nil && m.gateState.Status != auth.StatusSignedIn
}

// Store calls run off the UI loop. Each works on a scratch view.State so the
// view's refresh rules apply, and reports the resulting snapshot.

func (m appModel) fetchCmd() tea.Cmd {
	ctx, inv := m.ctx, m.inv
	return func() tea.Msg {
		var scratch view.State
		err := scratch.Refresh(ctx, inv)
		return itemsLoadedMsg{items: scratch.Items, err: err}
	}
}

func (m appModel) incrementCmd(name string) tea.Cmd {
	ctx, inv := m.ctx, m.inv
	return func() tea.Msg {
		var scratch view.State
		err := scratch.Increment(ctx, inv, name)
		return itemsLoadedMsg{items: scratch.Items, err: err}
	}
}

func (m appModel) decrementCmd(name string) tea.Cmd {
	ctx, inv := m.ctx, m.inv
	return func() tea.Msg {
		var scratch view.State
		err := scratch.Decrement(ctx, inv, name)
		return itemsLoadedMsg{items: scratch.Items, err: err}
	}
}

func (m appModel) saveCmd(sub view.Submission) tea.Cmd {
	ctx, inv := m.ctx, m.inv
	return func() tea.Msg {
		res, err := sub.Run(ctx, inv)
		return savedMsg{res: res, err: err}
	}
}

func tickReload() tea.Cmd {
	return tea.Tick(750*time.Millisecond, func(time.Time) tea.Msg { return reloadTickMsg{} })
}

func fileModTime(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return st.ModTime()
}

// selected returns the item under the cursor in the visible list.
func (m appModel) selected() (model.Item, bool) {
	visible := m.state.Visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return model.Item{}, false
	}
	return visible[m.cursor], true
}

func (m *appModel) clampCursor() {
	n := len(m.state.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
