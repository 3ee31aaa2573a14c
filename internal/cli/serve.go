package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/observability"
	"github.com/matzehuels/labelkit/pkg/server"
)

type serveOpts struct {
	addr    string
	noCache bool
	metrics bool
}

// serveCommand creates the serve command, which runs the HTTP print API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP print API",
		Long: `Serve exposes rendering, previews, printing and template storage over HTTP.

  POST /api/print             send raw ZPL to host:port
  POST /api/labels/zpl        render items to ZPL
  POST /api/labels/preview    render the first item as SVG
  POST /api/labels/print      render items and print them
  GET  /api/printers          configured printers
  /api/templates              saved label layouts
  GET  /metrics               Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", true, "expose Prometheus metrics at /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cmd *cobra.Command, opts *serveOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr = opts.addr
	}

	var metrics http.Handler
	if opts.metrics {
		prom := observability.NewPrometheus()
		prom.Register()
		defer observability.Reset()
		metrics = prom.Handler()
	}

	store, err := cfg.Templates.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := server.New(server.Options{
		Runner:         runner,
		Templates:      store,
		Config:         cfg,
		Metrics:        metrics,
		Logger:         logger,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	logger.Debug("backends", "cache", cfg.Cache.Backend, "templates", cfg.Templates.Backend)
	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
