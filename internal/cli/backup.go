package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockroom-cli/internal/config"
	"stockroom-cli/internal/format"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/store"
)

func eventLog(cfg *config.Config) store.EventLog {
	return store.EventLog{Dir: cfg.Dir}
}

func newBackupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a JSON snapshot of the inventory",
	}
	cmd.AddCommand(newBackupExportCmd(app))
	cmd.AddCommand(newBackupImportCmd(app))
	return cmd
}

func newBackupExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file|s3://bucket/key>",
		Short: "Write every item to a snapshot file or S3 object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, app, nil, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			snap, err := store.Export(ctx, e.items, e.cfg.Store.Collection)
			if err != nil {
				return writeErr(cmd, err)
			}
			dest := strings.TrimSpace(args[0])
			if bucket, key, ok := store.ParseS3URL(dest); ok {
				err = store.UploadSnapshotS3(ctx, e.cfg.Store.S3, bucket, key, snap)
			} else {
				err = store.WriteSnapshotFile(dest, snap)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{
				Data: map[string]any{
					"path":       dest,
					"collection": snap.Collection,
					"items":      len(snap.Items),
					"exportedAt": snap.ExportedAt,
				},
			})
		},
	}
}

func newBackupImportCmd(app *App) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot file into the store",
		Long: strings.TrimSpace(`
Load a snapshot written by "backup export". Items in the snapshot overwrite
items with the same name. With --replace, items missing from the snapshot
are deleted. The snapshot is checked before anything is written.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := store.ReadSnapshotFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, app, nil, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			n, err := store.Import(ctx, e.items, snap, replace)
			if err != nil {
				return writeErr(cmd, err)
			}
			// Running web servers refresh off the event log.
			if _, err := e.events.Append(ctx, model.Event{
				Type:     model.EventImport,
				Name:     snap.Collection,
				Quantity: n,
				ActorID:  strings.TrimSpace(app.ActorID),
			}); err != nil {
				e.log.Warn("append import event failed", zap.Error(err))
			}
			return writeOut(cmd, app, format.Envelope{
				Data: map[string]any{"imported": n, "replace": replace},
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete items that are not in the snapshot")
	return cmd
}
