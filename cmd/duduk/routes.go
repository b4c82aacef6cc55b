package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route tree",
		Long: `Print every route the compiled application answers, with the page
module, the layouts wrapping it and the methods its handlers serve.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, nil)
			if err != nil {
				return err
			}
			routes, err := app.Routes()
			if err != nil {
				return err
			}
			if len(routes) == 0 {
				info(cmd, "No routes found in %s", app.Config().DistPath())
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ROUTE\tPAGE\tLAYOUTS\tMETHODS")
			for _, r := range routes {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.RouteID, orDash(r.Page), len(r.Layouts), orDash(strings.Join(r.Methods, ",")))
			}
			return tw.Flush()
		},
	}
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
