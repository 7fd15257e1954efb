package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"iorganise/internal/registry"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the weights catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cat, err := registry.FromConfig(cfg.Models)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tVARIANT\tDEFAULT\tAVAILABLE\tPATH")
			for _, m := range cat.List() {
				def := ""
				if m.Default {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", m.Kind, m.Variant, def, m.Available, m.Path)
			}
			return tw.Flush()
		},
	}
}
