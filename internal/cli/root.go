// Package cli is the stockroom command line: scriptable commands that print
// a {"data": ...} envelope, and the interactive TUI when run bare.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockroom-cli/internal/config"
	"stockroom-cli/internal/format"
	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/logging"
	"stockroom-cli/internal/store"
)

type App struct {
	Dir        string
	ConfigPath string
	Store      string
	ActorID    string
	PrettyJSON bool
	Format     string
	Verbose    bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "stockroom",
		Short:        "Stockroom inventory CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  stockroom

  # Scriptable commands
  stockroom items list --search ap --sort asc
  stockroom items add apple --quantity 3
  stockroom items rename apple "green apple" --quantity 5

  # Serve the web UI
  stockroom web --addr 127.0.0.1:3340
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("STOCKROOM_DIR", ""), "Data directory (sqlite file, event log, web secret)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("STOCKROOM_CONFIG", ""), "Config file (default: ~/.stockroom/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.Store, "store", "", "Store driver (sqlite|postgres|s3|memory); overrides store.driver")
	cmd.PersistentFlags().StringVar(&app.ActorID, "actor", envOr("STOCKROOM_ACTOR", ""), "Actor id recorded on events; with auth.mode=dev also signs the TUI in")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("STOCKROOM_FORMAT", "json"), "Output format (json|edn)")
	cmd.PersistentFlags().BoolVar(&app.Verbose, "verbose", false, "Log debug output to stderr")

	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newWebCmd(app))
	cmd.AddCommand(newWebTUICmd(app))
	cmd.AddCommand(newBackupCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// loadConfig reads the config file and applies the persistent flags on top.
func loadConfig(app *App) (*config.Config, error) {
	path := strings.TrimSpace(app.ConfigPath)
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if d := strings.TrimSpace(app.Dir); d != "" {
		cfg.Dir = d
	}
	if s := strings.TrimSpace(app.Store); s != "" {
		cfg.Store.Driver = s
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger is a no-op for scriptable commands unless --verbose is set, so
// stdout and stderr stay machine-readable.
func newLogger(app *App, cfg *config.Config) (*zap.Logger, error) {
	if !app.Verbose {
		return zap.NewNop(), nil
	}
	return logging.New(cfg.Logging, true)
}

// env bundles what a command needs to touch the inventory.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	items  store.Collection
	events store.EventLog
	inv    *inventory.Service
}

func (e *env) Close() error {
	_ = e.log.Sync()
	return e.items.Close()
}

// openEnv opens the configured store. cfg and log are loaded from app when nil.
func openEnv(ctx context.Context, app *App, cfg *config.Config, log *zap.Logger) (*env, error) {
	var err error
	if cfg == nil {
		if cfg, err = loadConfig(app); err != nil {
			return nil, err
		}
	}
	if log == nil {
		if log, err = newLogger(app, cfg); err != nil {
			return nil, err
		}
	}
	items, err := store.Open(ctx, cfg.Dir, cfg.Store)
	if err != nil {
		return nil, err
	}
	policy, err := inventory.ParseCollisionPolicy(cfg.Inventory.RenameCollision)
	if err != nil {
		_ = items.Close()
		return nil, err
	}
	events := store.EventLog{Dir: cfg.Dir}
	return &env{
		cfg:    cfg,
		log:    log,
		items:  items,
		events: events,
		inv: inventory.NewService(items, inventory.Options{
			Events:    events,
			Logger:    log,
			Collision: policy,
		}),
	}, nil
}

func actorContext(ctx context.Context, app *App) context.Context {
	if id := strings.TrimSpace(app.ActorID); id != "" {
		return inventory.WithActor(ctx, id)
	}
	return ctx
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

var errMissingName = errors.New("missing item name")
