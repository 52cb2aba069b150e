package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/secaudit/secaudit/internal/adapter"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List registered adapters and their severity-table versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapters, err := adapter.Build(adapter.Names(), nil)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTOOL\tSEVERITY TABLE")
		for _, ad := range adapters {
			tool := ad.Tool()
			if tool == "" {
				tool = "(built-in)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ad.Name(), tool, ad.TableVersion())
		}
		return w.Flush()
	},
}
