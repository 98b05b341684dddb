package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/toolvault/internal/server"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var noAutoSync bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, func(app *server.App) error {
				if !noAutoSync {
					app.Engine.Start(ctx)
				}

				g, gctx := errgroup.WithContext(ctx)
				if addr := opts.cfg.MetricsAddr; addr != "" {
					g.Go(func() error {
						return server.ServeMetrics(gctx, addr, app.Registry, opts.logger)
					})
				}
				g.Go(func() error {
					// stdio server manages its own lifecycle; stop the rest
					// once the host closes the stream.
					defer stop()
					return serveStdio(gctx, server.New(app), opts.logger)
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().BoolVar(&noAutoSync, "no-auto-sync", false, "do not run background sync")
	return cmd
}

func serveStdio(ctx context.Context, s *mcpserver.MCPServer, logger *zap.Logger) error {
	logger.Info("mcp server listening on stdio")
	stdio := mcpserver.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
