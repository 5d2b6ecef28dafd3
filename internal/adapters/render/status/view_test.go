package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/pogo-accounts/internal/application"
	"github.com/bnema/pogo-accounts/internal/domain"
)

var now = time.Date(2026, 10, 18, 11, 0, 0, 0, time.UTC)

func TestRenderSingleAccountStatus(t *testing.T) {
	output, err := Render([]application.Status{
		{
			Account:      domain.Account{Username: "trainer1", AuthService: domain.AuthServicePTC, Level: 12, SpinCount: 140},
			Set:          "north",
			HasPassword:  true,
			LastScanned:  now.Add(-3 * time.Hour),
			HourSpinRate: 30,
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "accounts: 1")
	assert.Contains(t, output, "trainer1 (ptc)")
	assert.Contains(t, output, "[north]")
	assert.Contains(t, output, "level: 12")
	assert.Contains(t, output, "spins: 140")
	assert.Contains(t, output, "password: set")
	assert.Contains(t, output, "30.0/h")
	assert.Contains(t, output, "[==========----------]")
	assert.Contains(t, output, "last scan: 3 hours ago")
	assert.NotContains(t, output, "quarantined")
}

func TestRenderMultiAccountStatus(t *testing.T) {
	output, err := Render([]application.Status{
		{
			Account:     domain.Account{Username: "trainer1", AuthService: domain.AuthServicePTC},
			Set:         "default",
			LastScanned: now.Add(-20 * time.Minute),
		},
		{
			Account:     domain.Account{Username: "trainer2", AuthService: domain.AuthServiceGoogle},
			Set:         "default",
			Quarantined: true,
			LastScanned: now.Add(-4 * 24 * time.Hour),
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "accounts: 2")
	assert.Contains(t, output, "trainer1 (ptc)")
	assert.Contains(t, output, "trainer2 (google)")
	assert.Contains(t, output, "[quarantined]")
	assert.Contains(t, output, "20 minutes ago")
	assert.Contains(t, output, "4 days ago (11:00 on 14 Oct)")
	assert.Contains(t, output, "level: ?")
	assert.Contains(t, output, "password: none")
}

func TestRenderNeverScannedAndEmptyRoster(t *testing.T) {
	output, err := Render([]application.Status{
		{Account: domain.Account{Username: "fresh"}},
	}, RenderOptions{Now: now})
	require.NoError(t, err)
	assert.Contains(t, output, "last scan: never")
	assert.Contains(t, output, "[--------------------]")

	output, err = Render(nil, RenderOptions{Now: now})
	require.NoError(t, err)
	assert.Contains(t, output, "No accounts configured.")
}

func TestRenderClampsSpinRateToCeiling(t *testing.T) {
	output, err := Render([]application.Status{
		{Account: domain.Account{Username: "fast"}, HourSpinRate: 90},
	}, RenderOptions{Now: now, SpinRateCeiling: 45})

	require.NoError(t, err)
	assert.Contains(t, output, "[====================]")
	assert.Contains(t, output, "90.0/h")
}

func TestRenderWithoutNowUsesAbsoluteTimes(t *testing.T) {
	output, err := Render([]application.Status{
		{Account: domain.Account{Username: "trainer1"}, LastScanned: now},
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "2026-10-18T11:00:00Z")
}

func TestRenderPool(t *testing.T) {
	output, err := RenderPool([]application.SetStatus{
		{
			Name:         "north",
			MaxSpeedKmph: 35,
			Accounts: []application.AccountStatus{
				{Username: "trainer1", InUse: true, LastScannedAt: now.Add(-2 * time.Minute), LastCoords: domain.Coords{Lat: 1.5, Lng: 2.5}},
				{Username: "trainer2", Quarantined: true},
				{Username: "trainer3"},
			},
		},
		{Name: "empty", MaxSpeedKmph: 20},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "sets: 2")
	assert.Contains(t, output, "north (1/3 available, max 35 km/h)")
	assert.Contains(t, output, "trainer1 in use")
	assert.Contains(t, output, "2 minutes ago")
	assert.Contains(t, output, "trainer2 quarantined never scanned")
	assert.Contains(t, output, "trainer3 idle never scanned")
	assert.Contains(t, output, "empty (0/0 available, max 20 km/h)")
	assert.Contains(t, output, "no members")
}

func TestRenderPoolWithoutSets(t *testing.T) {
	output, err := RenderPool(nil, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "No account sets loaded.")
}

func TestFormatRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		at   time.Time
		want string
	}{
		{at: now.Add(time.Minute), want: "just now"},
		{at: now.Add(-30 * time.Second), want: "just now"},
		{at: now.Add(-time.Minute), want: "1 minute ago"},
		{at: now.Add(-90 * time.Minute), want: "1 hour ago"},
		{at: now.Add(-25 * time.Hour), want: "1 day ago (10:00 on 17 Oct)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRelative(tt.at, now))
	}
}
