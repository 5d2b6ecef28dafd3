package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/pogo-accounts/internal/domain"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountAddCmd(app),
		newAccountStatusCmd(app),
		newAccountSetPasswordCmd(app),
		newAccountRemovePasswordCmd(app),
	)

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := app.service.GetStatusAll(cmd.Context())
			if err != nil {
				return err
			}

			for _, status := range statuses {
				state := "ok"
				if status.Quarantined {
					state = "quarantined"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					sanitizeForTerminal(status.Account.Username),
					status.Account.AuthService,
					sanitizeForTerminal(status.Set),
					state,
				)
			}

			return nil
		},
	}
}

func newAccountAddCmd(app *app) *cobra.Command {
	var username string
	var authService string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := domain.ParseAuthService(authService)
			if err != nil {
				return err
			}

			account, err := app.service.AddAccount(cmd.Context(), username, service)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (%s)\n", sanitizeForTerminal(account.Username), account.AuthService)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVar(&authService, "auth-service", string(domain.AuthServicePTC), "Login provider (ptc|google)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newAccountStatusCmd(app *app) *cobra.Command {
	var username string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show account progress and quarantine state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := loadStatuses(cmd, app.service, strings.TrimSpace(username))
			if err != nil {
				return err
			}

			return writeStatusesOutput(cmd, app, statuses, asJSON)
		},
	}

	cmd.Flags().StringVar(&username, "account", "", "Account username (all accounts when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statuses as JSON")

	return cmd
}

func newAccountSetPasswordCmd(app *app) *cobra.Command {
	var username string
	var secretKey string
	var password string

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Store an account password in the secret store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := strings.TrimSpace(secretKey)
			if key == "" {
				key = defaultSecretKey(username)
			}

			return app.service.SetPassword(cmd.Context(), domain.AccountID(username), key, password)
		},
	}

	cmd.Flags().StringVar(&username, "account", "", "Account username")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "Secret-store key (default pogo-accounts/<username>)")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAccountRemovePasswordCmd(app *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "remove-password",
		Short: "Delete an account's stored password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.service.RemovePassword(cmd.Context(), domain.AccountID(username))
		},
	}

	cmd.Flags().StringVar(&username, "account", "", "Account username")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func defaultSecretKey(username string) string {
	return "pogo-accounts/" + strings.TrimSpace(username)
}
