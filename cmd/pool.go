package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	statusadapter "github.com/bnema/pogo-accounts/internal/adapters/render/status"
	"github.com/bnema/pogo-accounts/internal/application"
	"github.com/bnema/pogo-accounts/internal/domain"
)

func newPoolCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect the account pool",
	}

	cmd.AddCommand(
		newPoolStatusCmd(app),
		newPoolNextCmd(app),
	)

	return cmd
}

func newPoolStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every set with its lease and quarantine state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, closeRegistry, err := app.openQuarantine()
			if err != nil {
				return err
			}
			defer closeRegistry()

			scheduler, _, err := app.loadScheduler(cmd.Context(), registry, nil)
			if err != nil {
				return err
			}
			snapshot := scheduler.Snapshot()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			}

			rendered, err := app.poolRenderer(snapshot, statusadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render pool status: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the lease table as JSON")

	return cmd
}

func newPoolNextCmd(app *app) *cobra.Command {
	var setName string
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show which account would be leased for a location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, closeRegistry, err := app.openQuarantine()
			if err != nil {
				return err
			}
			defer closeRegistry()

			scheduler, _, err := app.loadScheduler(cmd.Context(), registry, nil)
			if err != nil {
				return err
			}

			target := domain.Coords{Lat: lat, Lng: lng}
			account, err := scheduler.Acquire(setName, target)
			if errors.Is(err, domain.ErrNoAccountAvailable) {
				wait, waitErr := scheduler.NextAvailableIn(setName, target)
				if errors.Is(waitErr, domain.ErrNoAccountAvailable) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Every account of %s is in use\n", sanitizeForTerminal(setName))
					return nil
				}
				if waitErr != nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No account of %s can ever scan %s\n", sanitizeForTerminal(setName), target)
					return waitErr
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Next account of %s available in %s\n", sanitizeForTerminal(setName), wait.Round(time.Second))
				return nil
			}
			if err != nil {
				return err
			}
			defer scheduler.Release(account)

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Next account: %s\n", sanitizeForTerminal(account.Username))
			return nil
		},
	}

	cmd.Flags().StringVar(&setName, "set", application.DefaultSetName, "Account set")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Target latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Target longitude")

	return cmd
}
