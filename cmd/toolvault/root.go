package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/config"
	"github.com/HendryAvila/toolvault/internal/logging"
	"github.com/HendryAvila/toolvault/internal/server"
)

type cliOptions struct {
	dataDir    string
	localOnly  bool
	jsonOutput bool
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "toolvault",
		Short:         "Local-first tool repository with cloud sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = opts.dataDir
			}
			if cmd.Flags().Changed("local-only") {
				cfg.LocalOnlyMode = opts.localOnly
			}
			opts.cfg = cfg

			log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides TOOLVAULT_DATA_DIR)")
	root.PersistentFlags().BoolVar(&opts.localOnly, "local-only", false, "disable every remote operation")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newServeCmd(&opts),
		newSyncCmd(&opts),
		newStatusCmd(&opts),
		newDraftsCmd(&opts),
		newLoginCmd(&opts),
		newLogoutCmd(&opts),
		newListCmd(&opts),
		newExportCmd(&opts),
		newImportCmd(&opts),
		newCacheCmd(&opts),
		newVersionCmd(),
	)

	return root
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, opts *cliOptions, fn func(*server.App) error) error {
	app, err := server.Build(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			opts.logger.Warn("shutdown", zap.Error(err))
		}
	}()
	return fn(app)
}

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "toolvault v%s\n", server.Version)
			return err
		},
	}
}
