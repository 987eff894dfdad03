package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/docs"
	"stockroom-cli/internal/view"
)

func (m appModel) View() string {
	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")

	if m.gated() {
		b.WriteString(m.viewGate())
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Quit}))
		return b.String()
	}

	switch m.mode {
	case modeAbout:
		b.WriteString(renderMarkdown(docs.MustGet("keys"), m.width-4))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Close}))
		return b.String()
	case modeSearch:
		b.WriteString(m.viewSearch())
		b.WriteString("\n")
	case modeEditor:
		b.WriteString(m.viewEditor())
		b.WriteString("\n")
	}

	b.WriteString(m.viewList())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(styleError().Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.viewHelp())
	return b.String()
}

func (m appModel) viewHeader() string {
	left := styleTitle().Render("Stockroom")
	meta := []string{"Sort: " + m.state.SortLabel()}
	if m.state.Search != "" {
		meta = append(meta, fmt.Sprintf("Search: %q", m.state.Search))
	}
	if m.busy {
		meta = append(meta, "working…")
	}
	left += " " + styleMuted().Render(strings.Join(meta, "  ·  "))

	right := m.viewAuthStatus()
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m appModel) viewAuthStatus() string {
	if m.gate == nil {
		return ""
	}
	switch m.gateState.Status {
	case auth.StatusSignedIn:
		if m.gateState.User != nil {
			return styleMuted().Render("Signed in as " + m.gateState.User.Name)
		}
		return styleMuted().Render("Signed in")
	case auth.StatusSignedOut:
		return styleMuted().Render("Signed out")
	default:
		return styleMuted().Render("Checking sign-in…")
	}
}

func (m appModel) viewGate() string {
	if m.gateState.Status == auth.StatusSignedOut {
		return "Not logged in.\n" + styleMuted().Render("Start stockroom with --actor to sign in.")
	}
	return styleMuted().Render("Checking sign-in…")
}

func (m appModel) viewSearch() string {
	hint := m.help.ShortHelpView([]key.Binding{m.keys.Submit, m.keys.Clear, m.keys.Close})
	return styleOverlay(m.overlayWidth()).Render(m.search.View() + "\n" + hint)
}

func (m appModel) viewEditor() string {
	title := "Add item"
	if m.state.Editing != nil {
		title = "Edit item"
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(title),
		"Name:     " + m.name.View(),
		"Quantity: " + m.qty.View(),
	}
	if msg := editorError(m.state); msg != "" {
		lines = append(lines, styleError().Render(msg))
	}
	lines = append(lines, m.help.ShortHelpView([]key.Binding{m.keys.Submit, m.keys.NextField, m.keys.Close}))
	return styleOverlay(m.overlayWidth()).Render(strings.Join(lines, "\n"))
}

func (m appModel) overlayWidth() int {
	w := m.width - 4
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m appModel) viewList() string {
	visible := m.state.Visible()
	if len(visible) == 0 {
		if m.state.Search != "" {
			return styleMuted().Render("No items match.")
		}
		return styleMuted().Render("Nothing in stock yet.")
	}

	qtyW := 1
	for _, it := range visible {
		if n := len(strconv.Itoa(it.Quantity)); n > qtyW {
			qtyW = n
		}
	}
	nameW := m.width - qtyW - 4
	if nameW < 8 {
		nameW = 8
	}

	rows := make([]string, 0, len(visible))
	for i, it := range visible {
		name := padRight(truncateToWidth(view.DisplayName(it.Name), nameW), nameW)
		qty := fmt.Sprintf("%*d", qtyW, it.Quantity)
		if i == m.cursor {
			rows = append(rows, styleSelected().Render("> "+name+" "+qty))
			continue
		}
		rows = append(rows, "  "+name+" "+qty)
	}
	return strings.Join(rows, "\n")
}

func (m appModel) viewHelp() string {
	return m.help.View(m.keys)
}
