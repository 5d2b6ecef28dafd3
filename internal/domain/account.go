package domain

import "time"

const (
	DefaultMaxItems   = 350
	DefaultMaxPokemon = 250
)

type AccountID string

type Account struct {
	Username    string
	Password    string
	PasswordRef string
	AuthService AuthService

	InUse          bool
	CaptchaFlagged bool
	LastScannedAt  time.Time
	LastCoords     Coords

	ProxyURL     string
	ProxyDisplay string

	Level        int
	WalkedKm     float64
	SpinCount    int
	SessionSpins int
	HourSpinRate float64
	StartedAt    time.Time
	BuddyID      uint64
	// Onboarded is set once every required tutorial step is known complete.
	// Runtime only.
	Onboarded bool

	Items         map[int]int
	Pokemon       map[uint64]PokemonInfo
	Incubators    []Incubator
	Eggs          []Egg
	UsedPokestops map[string]time.Time

	MaxItems   int
	MaxPokemon int
}

func NewAccount(username, password string, service AuthService) *Account {
	account := &Account{
		Username:    username,
		Password:    password,
		AuthService: service,
	}
	account.Reset(time.Time{})
	return account
}

func (a *Account) ID() AccountID {
	return AccountID(a.Username)
}

func (a *Account) Credentials() Credentials {
	return Credentials{Provider: a.AuthService, Username: a.Username, Password: a.Password}
}

func (a *Account) HasScanned() bool {
	return !a.LastScannedAt.IsZero()
}

// Reset reinitializes progression and inventory. Called once per fresh login,
// not per lease.
func (a *Account) Reset(now time.Time) {
	a.StartedAt = now
	a.MaxItems = DefaultMaxItems
	a.MaxPokemon = DefaultMaxPokemon
	a.Items = map[int]int{}
	a.Pokemon = map[uint64]PokemonInfo{}
	a.Incubators = nil
	a.Eggs = nil
	a.Level = 0
	a.UsedPokestops = map[string]time.Time{}
	a.SpinCount = 0
	a.SessionSpins = 0
	a.HourSpinRate = 0
	a.WalkedKm = 0
}

// ItemTotal is the sum of all held item counts.
func (a *Account) ItemTotal() int {
	total := 0
	for _, count := range a.Items {
		total += count
	}
	return total
}

type Credentials struct {
	Provider AuthService
	Username string
	Password string
}

type Proxy struct {
	Label string
	URL   string
}
