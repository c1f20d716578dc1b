package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/revline/algateway/tools"
)

func newToolsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools with their category and cache TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			policy := cfg.Cache.Policy()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tTTL")
			for _, t := range tools.New(tools.Deps{}).Tools() {
				ttl := "-"
				if d, ok := policy.TTL(string(t.Name())); ok {
					ttl = d.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name(), t.Category(), ttl)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	return cmd
}
