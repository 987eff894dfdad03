package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/view"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case beginGateMsg:
		if m.gate != nil {
			gate := m.gate
			return m, func() tea.Msg {
				gate.Begin()
				return nil
			}
		}
		return m, nil

	case gateMsg:
		m.gateState = auth.GateState(msg)
		return m, nil

	case reloadTickMsg:
		if mt := fileModTime(m.eventsPath); mt.After(m.lastEventsTime) {
			m.lastEventsTime = mt
			return m, tea.Batch(m.fetchCmd(), tickReload())
		}
		return m, tickReload()

	case itemsLoadedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			m.log.Warn("inventory call failed", zap.Error(msg.err))
			return m, nil
		}
		m.status = ""
		m.state.Replace(msg.items)
		m.clampCursor()
		return m, nil

	case savedMsg:
		m.busy = false
		m.state.Saved(msg.res, msg.err)
		if msg.err != nil {
			m.log.Warn("save item failed", zap.Error(msg.err))
			return m, nil
		}
		m.closeEditor()
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if m.gated() {
			if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeEditor:
			return m.updateEditor(msg)
		case modeAbout:
			if key.Matches(msg, m.keys.Close, m.keys.About, m.keys.Quit) {
				m.mode = modeList
			}
			return m, nil
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m appModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Visible())-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Search):
		m.state.OpenSearch()
		m.mode = modeSearch
		m.search.SetValue(m.state.Search)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Add):
		m.state.OpenAdd()
		return m.openEditor()

	case key.Matches(msg, m.keys.Edit):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.state.BeginEdit(it)
		return m.openEditor()

	case key.Matches(msg, m.keys.Increment):
		if it, ok := m.selected(); ok && !m.busy {
			m.busy = true
			return m, m.incrementCmd(it.Name)
		}
	case key.Matches(msg, m.keys.Decrement):
		if it, ok := m.selected(); ok && !m.busy {
			m.busy = true
			return m, m.decrementCmd(it.Name)
		}

	case key.Matches(msg, m.keys.Sort):
		m.state.ToggleSort()
		m.clampCursor()

	case key.Matches(msg, m.keys.Refresh):
		m.busy = true
		return m, m.fetchCmd()

	case key.Matches(msg, m.keys.About):
		m.mode = modeAbout
	}
	return m, nil
}

func (m appModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit, m.keys.Close):
		m.state.CloseSearch()
		m.search.Blur()
		m.mode = modeList
		return m, nil
	case key.Matches(msg, m.keys.Clear):
		m.state.ClearSearch()
		m.search.SetValue("")
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.state.SetSearch(m.search.Value())
	m.clampCursor()
	return m, cmd
}

func (m appModel) openEditor() (tea.Model, tea.Cmd) {
	m.mode = modeEditor
	m.name.SetValue(m.state.NameField)
	m.qty.SetValue(m.state.QuantityField)
	m.name.CursorEnd()
	m.qty.CursorEnd()
	m.focus = fieldName
	m.qty.Blur()
	return m, m.name.Focus()
}

func (m *appModel) closeEditor() {
	m.mode = modeList
	m.name.Blur()
	m.qty.Blur()
	m.name.SetValue("")
	m.qty.SetValue("")
}

func (m appModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Close):
		m.state.CloseEditor()
		m.closeEditor()
		return m, nil

	case key.Matches(msg, m.keys.NextField, m.keys.PrevField):
		if m.focus == fieldName {
			m.focus = fieldQuantity
			m.name.Blur()
			return m, m.qty.Focus()
		}
		m.focus = fieldName
		m.qty.Blur()
		return m, m.name.Focus()

	case key.Matches(msg, m.keys.Submit):
		if m.busy {
			return m, nil
		}
		m.state.NameField = m.name.Value()
		m.state.QuantityField = m.qty.Value()
		sub, err := m.state.Validate()
		if err != nil {
			return m, nil
		}
		m.busy = true
		return m, m.saveCmd(sub)
	}

	var cmd tea.Cmd
	if m.focus == fieldName {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.qty, cmd = m.qty.Update(msg)
	}
	return m, cmd
}

// editorError is the inline message shown under the editor fields.
func editorError(st *view.State) string {
	if st.Err == nil {
		return ""
	}
	return st.Err.Error()
}
