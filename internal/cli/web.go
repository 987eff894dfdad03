package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/format"
	"stockroom-cli/internal/logging"
	"stockroom-cli/internal/web"
)

func newWebCmd(app *App) *cobra.Command {
	var addr string
	var authMode string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the inventory as a web page with live updates",
		Long: strings.TrimSpace(`
Serve the inventory over HTTP: a server-rendered page that patches itself
over SSE when the inventory changes (also when another stockroom process
changes it), a JSON API under /api/items, /health and /metrics.

--auth picks the sign-in gate: none (open), dev (pick a configured user),
or oauth (authorization-code flow; see auth.oauth in the config file).
`),
		Example: strings.TrimSpace(`
# Serve on localhost
stockroom web --addr 127.0.0.1:3340

# Require a sign-in from the configured dev users
stockroom web --auth dev
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if m := strings.TrimSpace(authMode); m != "" {
				cfg.Auth.Mode = m
				if err := cfg.Validate(); err != nil {
					return writeErr(cmd, err)
				}
			}
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = cfg.Web.Addr
			}

			log, err := logging.New(cfg.Logging, app.Verbose)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx, app, cfg, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			settle, _ := cfg.Auth.SettleDelayDuration()
			ttl, _ := cfg.Auth.SessionTTLDuration()
			opts := web.Options{Logger: log}
			if cfg.Auth.Mode != auth.ModeNone {
				secret, err := auth.LoadOrInitSecretKey(cfg.Dir)
				if err != nil {
					return writeErr(cmd, err)
				}
				opts.Signer = auth.NewSigner(secret)
				if opts.Provider, err = auth.NewProvider(cfg.Auth, opts.Signer); err != nil {
					return writeErr(cmd, err)
				}
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:        listenAddr,
				Dir:         cfg.Dir,
				Locale:      cfg.View.Locale,
				SessionTTL:  ttl,
				SettleDelay: settle,
			}, e.inv, opts)
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			_ = writeOut(cmd, app, format.Envelope{
				Data: map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"dir":       cfg.Dir,
					"store":     cfg.Store.Driver,
					"auth":      cfg.Auth.Mode,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				Hints: []string{"open " + url},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Stockroom web running at %s (store=%s, auth=%s)\n", url, cfg.Store.Driver, cfg.Auth.Mode)
			log.Info("web server started", zap.String("addr", actualAddr), zap.String("auth", cfg.Auth.Mode))

			if err := srv.Serve(ctx, ln); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address, host:port or :port (default: web.addr, 127.0.0.1:3340)")
	cmd.Flags().StringVar(&authMode, "auth", "", "Sign-in gate: none|dev|oauth (default: auth.mode)")
	return cmd
}
