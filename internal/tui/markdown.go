package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. A fixed style avoids the terminal
	// background query WithAutoStyle would make.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

const (
	mdStyleDark  = "dark"
	mdStyleLight = "light"
	mdStyleNoTTY = "notty"
)

func markdownStyle() string {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return mdStyleNoTTY
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("STOCKROOM_TUI_MD_STYLE"))) {
	case mdStyleLight:
		return mdStyleLight
	case mdStyleDark:
		return mdStyleDark
	case mdStyleNoTTY, "plain":
		return mdStyleNoTTY
	}
	if lipgloss.HasDarkBackground() {
		return mdStyleDark
	}
	return mdStyleLight
}
