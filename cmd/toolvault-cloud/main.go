// toolvault-cloud: reference cloud backend for toolvault sync.
//
// Configuration comes from TOOLVAULT_CLOUD_* variables; the signing secret
// is required. Accounts and tools live in memory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/config"
	"github.com/HendryAvila/toolvault/internal/logging"
	"github.com/HendryAvila/toolvault/internal/remote/cloud"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:          "toolvault-cloud",
		Short:        "Serve the toolvault cloud REST API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCloud()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TOOLVAULT_CLOUD_ADDR)")
	return cmd
}

func run(ctx context.Context, cfg config.CloudConfig) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)
	srv, err := cloud.New(cloud.Config{
		Secret:   []byte(cfg.Secret),
		TokenTTL: cfg.TokenTTL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("cloud backend listening", zap.String("addr", cfg.Addr))
	return srv.ListenAndServe(ctx, cfg.Addr)
}
