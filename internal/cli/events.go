package cli

import (
	"github.com/spf13/cobra"

	"stockroom-cli/internal/format"
)

func newEventsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the inventory activity log",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events (oldest-first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := eventLog(cfg).Read(limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{
				Data: evs,
				Meta: map[string]any{"count": len(evs), "limit": limit},
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 200, "Max events to return, newest kept (0 = all)")

	cmd.AddCommand(listCmd)
	return cmd
}
