package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockroom-cli/internal/format"
	"stockroom-cli/internal/logging"
	"stockroom-cli/internal/webtui"
)

func newWebTUICmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "webtui",
		Short: "Run the terminal UI in your browser (PTY + WebSocket)",
		Long: strings.TrimSpace(`
Run the terminal UI over the web via a server-side PTY and a browser
terminal emulator. Each browser tab starts its own TUI subprocess with the
same --dir, --config, --store and --actor as this command.

There is no sign-in in front of the terminal; bind to localhost.
`),
		Example: strings.TrimSpace(`
stockroom webtui --addr 127.0.0.1:3341
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			log, err := logging.New(cfg.Logging, app.Verbose)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = log.Sync() }()

			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr: addr,
				Args: subprocessArgs(app),
			}, webtui.Options{Logger: log})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return writeErr(cmd, err)
			}
			url := "http://" + ln.Addr().String() + "/"
			_ = writeOut(cmd, app, format.Envelope{
				Data: map[string]any{
					"addr":      ln.Addr().String(),
					"url":       url,
					"dir":       cfg.Dir,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				Hints: []string{"open " + url},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Stockroom webtui running at %s\n", url)

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				_ = hs.Close()
			}()
			if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("webtui server stopped", zap.Error(err))
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3341", "Bind address (host:port or :port)")
	return cmd
}

// subprocessArgs forwards the persistent flags that select data and identity.
func subprocessArgs(app *App) []string {
	var args []string
	for _, f := range []struct{ name, value string }{
		{"--dir", app.Dir},
		{"--config", app.ConfigPath},
		{"--store", app.Store},
		{"--actor", app.ActorID},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			args = append(args, f.name, v)
		}
	}
	return args
}
