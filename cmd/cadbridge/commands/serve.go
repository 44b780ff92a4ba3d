package commands

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cadbridge/cadbridge/pkg/config"
	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/handlers"
	"github.com/cadbridge/cadbridge/pkg/plugin/server"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		listenHost string
		port       int
		designName string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin command server",
		Long: `Run the plugin side of the command protocol.

The server listens on a local TCP port and serves commands against an
in-memory design workspace, one host call at a time. It is the
stand-in for the plugin running inside a CAD host and is useful for
developing automation against the protocol.

When a metrics listen address is configured the Prometheus endpoint is
served alongside.`,
		Example: `  # Serve on the default localhost:8765
  cadbridge serve

  # Serve on another port with a named design
  cadbridge serve --port 9000 --design "Gearbox"

  # Reload the log level when the config file changes
  cadbridge serve -c cadbridge.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			srvCfg := cfg.Server
			if cmd.Flags().Changed("host") {
				srvCfg.Host = listenHost
			}
			if cmd.Flags().Changed("port") {
				srvCfg.Port = port
			}

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			executor := host.NewExecutor(64)
			defer executor.Close()

			workspace := host.NewWorkspace(host.WithDesignName(designName))
			table := handlers.NewTable(workspace, handlers.WithExecutor(executor))
			srv := server.New(srvCfg, table,
				server.WithLogger(rt.logger),
				server.WithMetrics(rt.telemetry.Metrics),
				server.WithTracer(rt.telemetry.Tracer),
			)

			log.Info().
				Str("address", srvCfg.Address()).
				Str("design", designName).
				Strs("commands", table.Names()).
				Msg("Starting plugin server")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Serve(gctx)
			})
			g.Go(func() error {
				return rt.telemetry.Metrics.Serve(gctx)
			})
			if watch && configPath != "" {
				g.Go(func() error {
					return config.Watch(gctx, configPath, rt.logger, func(next *config.Config) {
						level := telemetry.ParseLevel(next.Telemetry.Logging.Level)
						zerolog.SetGlobalLevel(level)
						log.Info().Str("level", level.String()).Msg("Applied reloaded log level")
					})
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			log.Info().Msg("Plugin server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&listenHost, "host", "localhost", "listen host")
	cmd.Flags().IntVarP(&port, "port", "p", 8765, "listen port")
	cmd.Flags().StringVar(&designName, "design", "Untitled Design", "name of the in-memory design")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the config file on change")

	return cmd
}
