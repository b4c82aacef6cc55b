package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duduk-dev/duduk/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duduk",
		Short: "Serve file-system-routed web component applications",
		Long: `Duduk serves a compiled web component application.

Routes come from the directory layout under __app/routes. Pages and
their layouts are rendered on the server with declarative shadow DOM,
and the same modules hydrate in the browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("dir", "C", ".", "Project directory containing duduk.json")

	cmd.AddCommand(
		serveCmd(),
		routesCmd(),
		versionCmd(),
	)
	return cmd
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
