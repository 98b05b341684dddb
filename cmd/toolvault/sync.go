package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/toolvault/internal/server"
)

func newSyncCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile this device with the cloud",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				res, err := app.Engine.Sync(cmd.Context())
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "local=%d cloud=%d merged=%d conflicts=%d\n",
					res.LocalCount, res.CloudCount, res.Merged, res.Conflicts)
				for _, id := range res.ConflictIDs {
					fmt.Fprintf(out, "conflict %s\n", id)
				}
				if res.Conflicts > 0 {
					return exitError{code: 2, silent: true}
				}
				return nil
			})
		},
	}
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	var autoSync string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				switch autoSync {
				case "":
				case "on", "off":
					if err := app.Engine.SetAutoSync(cmd.Context(), autoSync == "on"); err != nil {
						return err
					}
				default:
					return fmt.Errorf("--auto-sync must be on or off, got %q", autoSync)
				}

				st := app.Engine.State()
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				last := "never"
				if !st.LastSync.IsZero() {
					last = st.LastSync.Local().Format("2006-01-02 15:04:05")
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "status=%s last_sync=%s auto_sync=%t local_only=%t cloud=%t\n",
					st.Status, last, st.AutoSync, app.Repo.LocalOnly(), app.Repo.IsCloudAvailable(cmd.Context()))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&autoSync, "auto-sync", "", "turn background sync on or off")
	return cmd
}

func newDraftsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-drafts",
		Short: "Upload tools created on this device while offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				n, err := app.Engine.ImportLocalDrafts(cmd.Context())
				if err != nil {
					return fmt.Errorf("import drafts: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d drafts\n", n)
				return err
			})
		},
	}
}
