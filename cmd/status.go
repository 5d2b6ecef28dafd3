package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	statusadapter "github.com/bnema/pogo-accounts/internal/adapters/render/status"
	"github.com/bnema/pogo-accounts/internal/application"
	"github.com/bnema/pogo-accounts/internal/domain"
)

type statusJSON struct {
	Username     string  `json:"username"`
	AuthService  string  `json:"auth_service"`
	Set          string  `json:"set"`
	Quarantined  bool    `json:"quarantined"`
	HasPassword  bool    `json:"has_password"`
	Level        int     `json:"level"`
	SpinCount    int     `json:"spin_count"`
	HourSpinRate float64 `json:"hour_spin_rate"`
	LastScanned  string  `json:"last_scanned,omitempty"`
}

func writeStatusesOutput(cmd *cobra.Command, app *app, statuses []application.Status, asJSON bool) error {
	if asJSON {
		out := make([]statusJSON, 0, len(statuses))
		for _, status := range statuses {
			entry := statusJSON{
				Username:     status.Account.Username,
				AuthService:  string(status.Account.AuthService),
				Set:          status.Set,
				Quarantined:  status.Quarantined,
				HasPassword:  status.HasPassword,
				Level:        status.Account.Level,
				SpinCount:    status.Account.SpinCount,
				HourSpinRate: status.HourSpinRate,
			}
			if !status.LastScanned.IsZero() {
				entry.LastScanned = status.LastScanned.UTC().Format(time.RFC3339)
			}
			out = append(out, entry)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{
		Now:             app.now(),
		SpinRateCeiling: float64(app.cfg.Session.AccountMaxSpins),
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadStatuses(cmd *cobra.Command, svc *application.Service, username string) ([]application.Status, error) {
	if username == "" {
		return svc.GetStatusAll(cmd.Context())
	}

	status, err := svc.GetStatus(cmd.Context(), domain.AccountID(username))
	if err != nil {
		return nil, err
	}

	return []application.Status{status}, nil
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
