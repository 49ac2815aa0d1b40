package cli

import (
	"fmt"

	"github.com/glorpus-work/ecget/pkg/catalog"
	"github.com/spf13/cobra"
)

// NewProductsCmd creates the products command.
func NewProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the product catalog",
		Long: `List every supported product code with its accepted short form and the
baselines the archive has published for it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-6s %s\n", "CODE", "SHORT", "KNOWN BASELINES")
			fmt.Fprint(out, catalog.FormatCatalog())
			return nil
		},
	}
}
