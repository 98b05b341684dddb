package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/toolvault/internal/server"
)

func newLoginCmd(opts *cliOptions) *cobra.Command {
	var (
		email  string
		signup bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the cloud store (password read from stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && password == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(password, "\r\n")

			return withApp(cmd.Context(), opts, func(app *server.App) error {
				auth := app.Repo.Auth()
				signIn := auth.SignIn
				if signup {
					signIn = auth.SignUp
				}
				user, err := signIn(cmd.Context(), email, password)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.Email, user.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&signup, "signup", false, "create the account first")
	return cmd
}

func newLogoutCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cloud session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				return app.Repo.Auth().SignOut(cmd.Context())
			})
		},
	}
}
