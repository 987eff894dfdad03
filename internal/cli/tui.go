package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/config"
	"stockroom-cli/internal/logging"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/tui"
)

func runTUI(cmd *cobra.Command, app *App) error {
	cfg, err := loadConfig(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	// The TUI owns the terminal, so it only logs when a file is configured.
	log := zap.NewNop()
	if strings.TrimSpace(cfg.Logging.File) != "" {
		if log, err = logging.New(cfg.Logging, app.Verbose); err != nil {
			return writeErr(cmd, err)
		}
	}

	ctx := commandContext(cmd)
	e, err := openEnv(ctx, app, cfg, log)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()

	provider, user, err := tuiIdentity(ctx, app, e.cfg.Auth, log)
	if err != nil {
		return writeErr(cmd, err)
	}
	settle, _ := e.cfg.Auth.SettleDelayDuration()

	return tui.Run(actorContext(ctx, app), e.inv, tui.Options{
		Locale:      e.cfg.View.Locale,
		EventsPath:  e.events.Path(),
		Provider:    provider,
		User:        user,
		SettleDelay: settle,
		Logger:      log,
	})
}

// tuiIdentity picks the gate provider for the terminal. The dev provider
// signs --actor in; a browser redirect flow cannot run here.
func tuiIdentity(ctx context.Context, app *App, cfg config.AuthConfig, log *zap.Logger) (auth.Provider, *model.User, error) {
	switch cfg.Mode {
	case auth.ModeNone, "":
		return nil, nil, nil
	case auth.ModeOAuth:
		return nil, nil, errors.New("oauth sign-in needs a browser; use `stockroom web` or auth.mode=dev")
	}
	p, err := auth.NewProvider(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	actor := strings.TrimSpace(app.ActorID)
	if actor == "" {
		return p, nil, nil
	}
	u, err := p.SignIn(ctx, auth.SignInRequest{User: actor})
	if err != nil {
		log.Warn("sign-in failed", zap.String("actor", actor), zap.Error(err))
		return p, nil, nil
	}
	return p, &u, nil
}
