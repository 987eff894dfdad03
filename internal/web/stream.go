package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
)

const keepAliveInterval = 25 * time.Second

// handleInventoryEvents streams two fragments: #auth follows a per-connection
// auth gate (loading, then signed-in or signed-out), and #inventory is
// re-rendered whenever the hub reports a change.
func (s *Server) handleInventoryEvents(w http.ResponseWriter, r *http.Request) {
	q := parseListQuery(r.URL.Query())
	_, signedIn := s.userFromRequest(r)

	ch, cancel := s.hub.subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)
	_ = sse.PatchSignals([]byte(`{}`))

	gateCh := make(chan auth.GateState, 8)
	gate := auth.NewGate(s.provider, s.sessionFor(r), auth.GateOptions{
		SettleDelay: s.cfg.SettleDelay,
		Logger:      s.log,
		OnChange: func(st auth.GateState) {
			select {
			case gateCh <- st:
			default:
			}
		},
	})
	defer gate.Close()
	if s.gated() {
		gate.Begin()
	}

	patch := func(selector string, render func() (string, error)) {
		html, err := render()
		if err != nil {
			s.log.Warn("render stream fragment failed", zap.String("selector", selector), zap.Error(err))
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			return
		}
		if strings.TrimSpace(html) == "" {
			return
		}
		_ = sse.PatchElements(html, datastar.WithSelector(selector), datastar.WithMode(datastar.ElementPatchModeOuter))
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case st := <-gateCh:
			patch("#auth", func() (string, error) {
				return s.renderTemplate("auth", gateVM{Enabled: true, Status: string(st.Status), User: st.User})
			})
		case <-ch:
			if s.gated() && !signedIn {
				continue
			}
			patch("#inventory", func() (string, error) {
				return s.renderInventory(sse.Context(), q)
			})
		}
	}
}

func (s *Server) renderInventory(ctx context.Context, q listQuery) (string, error) {
	st := s.newState(q)
	if err := st.Refresh(ctx, s.tracked()); err != nil {
		return "", err
	}
	return s.renderTemplate("inventory", s.inventoryVM(st, q))
}
