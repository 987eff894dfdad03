package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockroom-cli/internal/format"
	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/view"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and change inventory items",
	}
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsAddCmd(app))
	cmd.AddCommand(newItemsRemoveCmd(app))
	cmd.AddCommand(newItemsRenameCmd(app))
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	var search string
	var sortFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items (filtered by --search, then sorted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := model.ParseSortOrder(sortFlag)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, app, nil, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			st := view.New(e.cfg.View.Locale)
			if err := st.Refresh(ctx, e.inv); err != nil {
				return writeErr(cmd, err)
			}
			st.SetSearch(search)
			st.Sort = order
			visible := st.Visible()

			var hints []string
			if len(visible) == 0 && len(st.Items) > 0 {
				hints = append(hints, fmt.Sprintf("no items match %q; drop --search to see all %d", search, len(st.Items)))
			}
			return writeOut(cmd, app, format.Envelope{
				Data: visible,
				Meta: map[string]any{
					"count":  len(visible),
					"total":  len(st.Items),
					"search": search,
					"sort":   string(order),
				},
				Hints: hints,
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive substring filter on the name")
	cmd.Flags().StringVar(&sortFlag, "sort", "default", "Sort order (default|asc|desc)")
	return cmd
}

func newItemsAddCmd(app *App) *cobra.Command {
	var quantity string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item, or add to its quantity if it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := view.New("")
			st.OpenAdd()
			st.NameField = args[0]
			st.QuantityField = quantity
			return runSubmission(cmd, app, st, "")
		},
	}
	cmd.Flags().StringVar(&quantity, "quantity", "1", "How many to add (whole number, at least 1)")
	return cmd
}

func newItemsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Take one away; the last one deletes the item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if strings.TrimSpace(name) == "" {
				return writeErr(cmd, errMissingName)
			}
			ctx := commandContext(cmd)
			e, err := openEnv(ctx, app, nil, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			res, err := e.inv.RemoveOrDecrement(actorContext(ctx, app), name)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: res})
		},
	}
}

func newItemsRenameCmd(app *App) *cobra.Command {
	var quantity string
	var onCollision string

	cmd := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename an item and set its quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := view.New("")
			st.BeginEdit(model.Item{Name: args[0]})
			st.NameField = args[1]
			st.QuantityField = quantity
			return runSubmission(cmd, app, st, onCollision)
		},
	}
	cmd.Flags().StringVar(&quantity, "quantity", "", "New quantity (whole number, at least 1)")
	cmd.Flags().StringVar(&onCollision, "on-collision", "", "When <new> exists: overwrite|merge|reject (default: inventory.rename_collision)")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

// runSubmission validates the editor fields in st the same way the web and
// TUI editors do, then runs the save.
func runSubmission(cmd *cobra.Command, app *App, st *view.State, onCollision string) error {
	sub, err := st.Validate()
	if err != nil {
		return writeErr(cmd, err)
	}
	var policy inventory.CollisionPolicy
	if strings.TrimSpace(onCollision) != "" {
		if policy, err = inventory.ParseCollisionPolicy(onCollision); err != nil {
			return writeErr(cmd, err)
		}
	}

	ctx := commandContext(cmd)
	e, err := openEnv(ctx, app, nil, nil)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()

	res, err := sub.Run(actorContext(ctx, app), e.inv.WithCollision(policy))
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, format.Envelope{Data: res})
}
