package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/pogo-accounts/internal/domain"
)

func newSetCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Manage account sets",
	}

	cmd.AddCommand(newSetSaveCmd(app), newSetListCmd(app))

	return cmd
}

func newSetSaveCmd(app *app) *cobra.Command {
	var name string
	var members []string
	var maxSpeed float64

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or replace an account set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := domain.AccountSet{Name: strings.TrimSpace(name), MaxSpeedKmph: maxSpeed}
			for _, member := range members {
				set.Members = append(set.Members, domain.AccountID(strings.TrimSpace(member)))
			}

			if err := app.service.SaveSet(cmd.Context(), set); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved set %s (members: %d)\n", sanitizeForTerminal(set.Name), len(set.Members))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Set name")
	cmd.Flags().StringSliceVar(&members, "member", nil, "Member username (repeatable)")
	cmd.Flags().Float64Var(&maxSpeed, "max-speed", 0, "Travel speed ceiling in km/h (0 uses scheduler.max_speed_kmph)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("member")

	return cmd
}

func newSetListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List account sets and their members",
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := app.service.GetStatusAll(cmd.Context())
			if err != nil {
				return err
			}

			var order []string
			members := map[string][]string{}
			for _, status := range statuses {
				if _, ok := members[status.Set]; !ok {
					order = append(order, status.Set)
				}
				members[status.Set] = append(members[status.Set], sanitizeForTerminal(status.Account.Username))
			}

			if len(order) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "sets: none")
				return nil
			}
			for _, name := range order {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sanitizeForTerminal(name), strings.Join(members[name], ", "))
			}
			return nil
		},
	}
}
