package main

import (
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/vae/internal/envconfig"
)

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show recognized environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars := envconfig.AsMap()
			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			var data [][]string
			values := envconfig.Values()
			for _, k := range keys {
				data = append(data, []string{k, values[k], vars[k].Description})
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}
