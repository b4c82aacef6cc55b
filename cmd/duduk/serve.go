package main

import (
	"github.com/spf13/cobra"

	"github.com/duduk-dev/duduk"
)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
		dist string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiled application",
		Long: `Serve the compiled application until interrupted.

Settings come from duduk.json in the project directory, then from the
environment (and a .env file), then from these flags.

Examples:
  duduk serve
  duduk serve --port=8080
  duduk serve -C ./site --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, func(cfg *duduk.Config) {
				if port > 0 {
					cfg.Port = port
				}
				if host != "" {
					cfg.Host = host
				}
				if dist != "" {
					cfg.Dist = dist
				}
			})
			if err != nil {
				return err
			}

			srv, err := app.Server()
			if err != nil {
				return err
			}
			cfg := app.Config()
			success(cmd, "Serving on http://%s", cfg.Address())
			if cfg.UsesS3() {
				info(cmd, "Modules: s3://%s/%s", cfg.Modules.S3.Bucket, cfg.Modules.S3.Prefix)
			} else {
				info(cmd, "Modules: %s", cfg.DistPath())
			}
			if cfg.Metrics.Enabled {
				info(cmd, "Metrics: %s", cfg.Metrics.Path)
			}
			return srv.Run()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from duduk.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from duduk.json)")
	cmd.Flags().StringVar(&dist, "dist", "", "Compiled application directory (default from duduk.json)")

	return cmd
}

// loadApp reads the configuration of the project selected by --dir,
// lets the caller adjust it, and validates the result.
func loadApp(cmd *cobra.Command, adjust func(*duduk.Config)) (*duduk.App, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	cfg, err := duduk.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return duduk.New(cfg, duduk.WithLogger(cfg.Logger(cmd.ErrOrStderr()))), nil
}
