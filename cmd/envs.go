package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/envgate/internal/env/builtin"
)

func envsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List the environments this binary can host",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := builtin.Registry()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMETADATA NAME\tAGENTS")
			for _, name := range registry.Names() {
				e, err := registry.Make(name, nil)
				if err != nil {
					return fmt.Errorf("build %s: %w", name, err)
				}
				fmt.Fprintf(tw, "%s\t%v\t%d\n", name, e.Metadata()["name"], len(e.Agents()))
				e.Close()
			}
			return tw.Flush()
		},
	}
}
