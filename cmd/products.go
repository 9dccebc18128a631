package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/shoplist/core/internal/services"
	"github.com/spf13/cobra"
)

var (
	productQuantity int
	productBought   bool
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the products of a list",
}

var productsAddCmd = &cobra.Command{
	Use:   "add LIST_ID NAME",
	Short: "Add a product to a list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			p, err := f.AddProduct(ctx, args[0], args[1], productQuantity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		})
	},
}

var productsLsCmd = &cobra.Command{
	Use:   "ls LIST_ID",
	Short: "List the products of a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			products, err := f.LoadProducts(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tQUANTITY\tBOUGHT")
			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%d %s\t%t\n", p.ID, p.Name, p.Quantity, p.Unit, p.Bought)
			}
			return w.Flush()
		})
	},
}

var productsToggleCmd = &cobra.Command{
	Use:   "toggle PRODUCT_ID",
	Short: "Mark a product bought or not bought",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			_, err := f.ToggleBought(ctx, args[0], productBought)
			return err
		})
	},
}

var productsQtyCmd = &cobra.Command{
	Use:   "qty PRODUCT_ID QUANTITY",
	Short: "Set a product's quantity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			_, err := f.SetQuantity(ctx, args[0], quantity)
			return err
		})
	},
}

var productsRmCmd = &cobra.Command{
	Use:   "rm PRODUCT_ID",
	Short: "Delete a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, f *services.Facade) error {
			return f.DeleteProduct(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(productsCmd)
	productsCmd.AddCommand(productsAddCmd, productsLsCmd, productsToggleCmd, productsQtyCmd, productsRmCmd)
	addCredentialFlags(productsCmd)

	productsAddCmd.Flags().IntVar(&productQuantity, "qty", 1, "quantity")
	productsToggleCmd.Flags().BoolVar(&productBought, "bought", true, "bought state to set")
}
