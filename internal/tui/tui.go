// Package tui is the interactive terminal surface over the inventory.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/view"
)

type Options struct {
	Locale string
	// EventsPath is polled so changes made by other processes show up.
	EventsPath string

	// Provider enables the sign-in gate unless it is nil or "none". User is
	// the identity the session starts with.
	Provider    auth.Provider
	User        *model.User
	SettleDelay time.Duration

	Logger *zap.Logger
}

func Run(ctx context.Context, inv view.Inventory, opts Options) error {
	applyColorProfilePreference()

	var p *tea.Program
	var gate *auth.Gate
	if opts.Provider != nil && opts.Provider.Name() != auth.ModeNone {
		gate = auth.NewGate(opts.Provider, auth.NewSession(opts.User), auth.GateOptions{
			SettleDelay: opts.SettleDelay,
			Logger:      opts.Logger,
			OnChange:    func(st auth.GateState) { p.Send(gateMsg(st)) },
		})
		defer gate.Close()
	}

	m := newAppModel(ctx, inv, opts, gate)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
