package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/pogo-accounts/internal/application"
)

const (
	defaultSpinRateCeiling = 60.0
	spinBarWidth           = 20
	// Scans older than this are drawn fully faded.
	freshnessWindow = 6 * time.Hour
)

type RenderOptions struct {
	Now time.Time
	// SpinRateCeiling is the hourly spin rate drawn as a full bar.
	SpinRateCeiling float64
}

func (o RenderOptions) ceiling() float64 {
	if o.SpinRateCeiling <= 0 {
		return defaultSpinRateCeiling
	}
	return o.SpinRateCeiling
}

func renderAccounts(statuses []application.Status, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Accounts"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(statuses))),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No accounts configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderAccount(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(status application.Status, opts RenderOptions, s styles) string {
	title := s.account.Render(accountTitle(status.Account.Username, string(status.Account.AuthService)))
	if status.Set != "" {
		title += " " + s.set.Render("["+status.Set+"]")
	}
	if status.Quarantined {
		title += " " + s.warning.Render("[quarantined]")
	}

	parts := []string{
		title,
		s.detail.Render(fmt.Sprintf("level: %s  spins: %d  password: %s",
			levelLabel(status.Account.Level), status.Account.SpinCount, passwordLabel(status.HasPassword))),
		spinRateLine(status.HourSpinRate, opts, s),
		lastScanLine(status.LastScanned, opts.Now, s),
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderPool(sets []application.SetStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Account pool"),
		s.header.Render(fmt.Sprintf("sets: %d", len(sets))),
	}

	if len(sets) == 0 {
		lines = append(lines, s.empty.Render("No account sets loaded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, set := range sets {
		lines = append(lines, s.section.Render(renderSet(set, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSet(set application.SetStatus, opts RenderOptions, s styles) string {
	available := 0
	for _, account := range set.Accounts {
		if !account.InUse && !account.Quarantined {
			available++
		}
	}

	parts := []string{
		s.account.Render(set.Name) + " " + s.set.Render(fmt.Sprintf("(%d/%d available, max %.0f km/h)",
			available, len(set.Accounts), set.MaxSpeedKmph)),
	}
	if len(set.Accounts) == 0 {
		parts = append(parts, s.empty.Render("  no members"))
	}

	for _, account := range set.Accounts {
		state := s.detail.Render("idle")
		switch {
		case account.Quarantined:
			state = s.warning.Render("quarantined")
		case account.InUse:
			state = s.busy.Render("in use")
		}

		position := "never scanned"
		if !account.LastScannedAt.IsZero() {
			position = fmt.Sprintf("at %s, %s", account.LastCoords, formatRelative(account.LastScannedAt, opts.Now))
		}

		color := freshnessColor(account.LastScannedAt, opts.Now)
		parts = append(parts, lipgloss.JoinHorizontal(
			lipgloss.Top,
			"  ",
			s.key.Render(account.Username),
			" ",
			state,
			" ",
			lipgloss.NewStyle().Foreground(color).Render(position),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func spinRateLine(rate float64, opts RenderOptions, s styles) string {
	ceiling := opts.ceiling()
	percent := clampPercent(rate / ceiling * 100)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("spin rate:"),
		" ",
		renderProgressBar(percent, spinBarWidth, s),
		" ",
		lipgloss.NewStyle().Foreground(interpolateColor(percent, 0, 100)).Render(fmt.Sprintf("%.1f/h", rate)),
	)
}

func lastScanLine(lastScanned, now time.Time, s styles) string {
	if lastScanned.IsZero() {
		return s.empty.Render("last scan: never")
	}

	style := lipgloss.NewStyle().Foreground(freshnessColor(lastScanned, now))
	return s.key.Render("last scan:") + " " + style.Render(formatRelative(lastScanned, now))
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	filled = max(0, min(filled, width))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatRelative(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}
	if !at.Before(now) {
		return "just now"
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return plural(int(elapsed.Hours()/24), "day") + " ago" + " (" + at.Format("15:04 on 02 Jan") + ")"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func accountTitle(username, service string) string {
	trimmed := strings.TrimSpace(username)
	if service == "" {
		return trimmed
	}
	return fmt.Sprintf("%s (%s)", trimmed, service)
}

func levelLabel(level int) string {
	if level <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", level)
}

func passwordLabel(has bool) string {
	if has {
		return "set"
	}
	return "none"
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 faded to 255 bright.
	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}

// freshnessColor is bright for a scan that just happened and fades over
// freshnessWindow.
func freshnessColor(lastScanned, now time.Time) lipgloss.Color {
	if now.IsZero() || lastScanned.IsZero() || !lastScanned.Before(now) {
		return lipgloss.Color("255")
	}

	remaining := freshnessWindow.Seconds() - now.Sub(lastScanned).Seconds()
	return interpolateColor(remaining, 0, freshnessWindow.Seconds())
}
