package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

// DashboardOptions holds flags shared by the dashboard commands.
type DashboardOptions struct {
	Icon string
}

// NewAddCommand creates the add command.
func NewAddCommand() *cobra.Command {
	opts := &DashboardOptions{}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an empty dashboard",
		Example: `  kipdash add Engine
  kipdash add Wind --icon dashboard-wind`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			d := cmdCtx.Store.Add(args[0], []dashboard.Widget{}, opts.Icon)
			if err := cmdCtx.Commit(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Added dashboard %q (%s) at index %d", d.Name, d.ID, cmdCtx.Store.Len()-1))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "Dashboard icon")
	return cmd
}

// NewRenameCommand creates the rename command.
func NewRenameCommand() *cobra.Command {
	opts := &DashboardOptions{}
	cmd := &cobra.Command{
		Use:     "rename <index> <name>",
		Short:   "Rename a dashboard and set its icon",
		Example: `  kipdash rename 1 "Engine room" --icon dashboard-engine`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			icon := opts.Icon
			if !cmd.Flags().Changed("icon") {
				if ds := cmdCtx.Store.Dashboards(); index < len(ds) {
					icon = ds[index].Icon
				}
			}
			if _, err := cmdCtx.Store.Update(index, args[1], icon); err != nil {
				return err
			}
			if err := cmdCtx.Commit(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Renamed dashboard %d to %q", index, args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "New icon (default: keep the current icon)")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <index>",
		Aliases: []string{"rm"},
		Short:   "Delete a dashboard",
		Long: `Delete the dashboard at index. Deleting the last remaining dashboard
replaces it with an empty one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Store.Delete(index); err != nil {
				return err
			}
			if err := cmdCtx.Commit(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Deleted dashboard %d (%d remaining)", index, cmdCtx.Store.Len()))
			return nil
		},
	}
}

// NewDuplicateCommand creates the duplicate command.
func NewDuplicateCommand() *cobra.Command {
	opts := &DashboardOptions{}
	cmd := &cobra.Command{
		Use:     "duplicate <index> <name>",
		Aliases: []string{"dup"},
		Short:   "Copy a dashboard with fresh widget ids",
		Example: `  kipdash duplicate 0 "Nav (night)"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			d, err := cmdCtx.Store.Duplicate(index, args[1], opts.Icon)
			if err != nil {
				return err
			}
			if err := cmdCtx.Commit(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Duplicated dashboard %d as %q (%s)", index, d.Name, d.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "Icon of the copy (default: "+dashboard.DefaultIcon+")")
	return cmd
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid dashboard index %q", s)
	}
	return i, nil
}
