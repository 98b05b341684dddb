package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/toolvault/internal/server"
	"github.com/HendryAvila/toolvault/internal/tool"
)

func newListCmd(opts *cliOptions) *cobra.Command {
	var (
		query string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tools from this device and the cloud",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				metas, err := app.Repo.List(cmd.Context(), tool.ListParams{Limit: limit, Query: query})
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), metas)
				}
				for _, m := range metas {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
						m.ID, m.Source, m.UpdatedAt.Local().Format("2006-01-02 15:04"), m.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "filter over name and summary")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (0 for all)")
	return cmd
}

func newExportCmd(opts *cliOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of this device's tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				data, err := app.Repo.LocalUtils().Export(cmd.Context())
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				return os.WriteFile(out, data, 0o600)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Restore a JSON backup (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading backup: %w", err)
			}

			return withApp(cmd.Context(), opts, func(app *server.App) error {
				res, err := app.Repo.LocalUtils().Import(cmd.Context(), data)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d tools, %d favorites\n",
					res.ToolsImported, res.FavoritesImported)
				return err
			})
		},
	}
}

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the artifact cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show artifact cache usage",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), opts, func(app *server.App) error {
					st, err := app.Repo.LocalUtils().CacheStats()
					if err != nil {
						return err
					}
					if opts.jsonOutput {
						return writeJSON(cmd.OutOrStdout(), st)
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "artifacts=%d size=%d max=%d\n",
						st.TotalCount, st.TotalSize, st.MaxSize)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached artifact",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), opts, func(app *server.App) error {
					return app.Repo.LocalUtils().ClearCache()
				})
			},
		},
	)
	return cmd
}
