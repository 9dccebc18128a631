package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shoplist/core/internal/services"
	"github.com/spf13/cobra"
)

var (
	listDescription string
	listCascade     bool
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage shopping lists",
}

var listsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a shopping list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			list, err := f.CreateList(ctx, args[0], listDescription)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), list.ID)
			return nil
		})
	},
}

var listsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your shopping lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			lists, err := f.GetLists(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tUPDATED")
			for _, l := range lists {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Description, l.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var listsRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a shopping list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			_, err := f.RenameList(ctx, args[0], args[1])
			return err
		})
	},
}

var listsRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a shopping list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			if listCascade {
				return f.DeleteListCascade(ctx, args[0])
			}
			return f.DeleteList(ctx, args[0])
		})
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress LIST_ID",
	Short: "Show how much of a list is bought",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			p, err := f.GetProgress(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d bought (%d%%), %d remaining\n", p.Bought, p.Total, p.Percent(), p.Remaining())
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export your lists and products to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			key, err := f.ExportData(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		})
	},
}

var exportLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your previous exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			exports, err := f.ListExports(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tCREATED")
			for _, e := range exports {
				fmt.Fprintf(w, "%s\t%d\t%s\n", e.Key, e.Size, e.LastModified.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var exportShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print one of your exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			data, err := f.ReadExport(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

var exportRmCmd = &cobra.Command{
	Use:   "rm KEY",
	Short: "Delete one of your exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			return f.DeleteExport(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(listsCmd, progressCmd, exportCmd)
	exportCmd.AddCommand(exportLsCmd, exportShowCmd, exportRmCmd)
	listsCmd.AddCommand(listsCreateCmd, listsLsCmd, listsRenameCmd, listsRmCmd)
	addCredentialFlags(listsCmd)
	addCredentialFlags(progressCmd)
	addCredentialFlags(exportCmd)

	listsCreateCmd.Flags().StringVar(&listDescription, "description", "", "list description")
	listsRmCmd.Flags().BoolVar(&listCascade, "cascade", false, "also delete the list's products")
}
