// Package mock is an in-process stand-in for the remote game service. It
// keeps per-identity player state across logins so scan runs behave like a
// real account pool without any network traffic.
package mock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	DefaultTicketTTL = 30 * time.Minute
	noChallenge      = " "
	challengeURL     = "https://mock.invalid/challenge"
)

var ErrNotAuthenticated = errors.New("mock api: not authenticated")

// Server hands out API clients that share player state keyed by device id.
type Server struct {
	clock  ports.Clock
	random ports.Random

	ticketTTL        time.Duration
	challengeRate    float64
	authFailureRate  float64
	completeTutorial bool

	mu      sync.Mutex
	players map[string]*player
}

var _ ports.RemoteFactory = (*Server)(nil)

type Option func(*Server)

func WithClock(clock ports.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithRandom(random ports.Random) Option {
	return func(s *Server) {
		if random != nil {
			s.random = random
		}
	}
}

func WithTicketTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.ticketTTL = ttl
		}
	}
}

// WithChallengeRate sets the probability that a task call flags the player.
// A flagged player keeps receiving the challenge on every later call.
func WithChallengeRate(rate float64) Option {
	return func(s *Server) { s.challengeRate = rate }
}

func WithAuthFailureRate(rate float64) Option {
	return func(s *Server) { s.authFailureRate = rate }
}

// WithCompletedTutorial makes new players start with onboarding done.
func WithCompletedTutorial() Option {
	return func(s *Server) { s.completeTutorial = true }
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		clock:     ports.SystemClock{},
		random:    ports.SystemRandom{},
		ticketTTL: DefaultTicketTTL,
		players:   make(map[string]*player),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) NewAPI(device domain.DeviceInfo, proxy *domain.Proxy) ports.RemoteAPI {
	return &API{server: s, deviceID: device.DeviceID}
}

// Flag marks the player behind deviceID as challenged.
func (s *Server) Flag(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerLocked(deviceID).challenged = true
}

func (s *Server) playerLocked(deviceID string) *player {
	p, ok := s.players[deviceID]
	if !ok {
		p = newPlayer(s.completeTutorial)
		s.players[deviceID] = p
	}
	return p
}

// API is one authenticated client of the mock server.
type API struct {
	server   *Server
	deviceID string

	mu        sync.Mutex
	username  string
	expiresAt time.Time
}

var _ ports.RemoteAPI = (*API)(nil)

func (a *API) Authenticate(ctx context.Context, creds domain.Credentials, _ *domain.Proxy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("mock api: empty credentials: %w", domain.ErrAuthFailed)
	}

	s := a.server
	s.mu.Lock()
	failed := s.random.Float64() < s.authFailureRate
	now := s.clock.Now()
	s.mu.Unlock()
	if failed {
		return fmt.Errorf("mock api: login rejected for %s: %w", creds.Username, domain.ErrAuthFailed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.username = creds.Username
	a.expiresAt = now.Add(s.ticketTTL)
	return nil
}

func (a *API) TicketExpiresAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expiresAt
}

func (a *API) Call(ctx context.Context, req *ports.Request) (ports.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	username, expiresAt := a.username, a.expiresAt
	a.mu.Unlock()

	s := a.server
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if expiresAt.IsZero() || !now.Before(expiresAt) {
		return nil, ErrNotAuthenticated
	}

	p := s.playerLocked(a.deviceID)
	resp := ports.Response{}
	withInventory := false

	for _, call := range req.Calls() {
		switch call.Method {
		case ports.MethodGetPlayer:
			resp[call.Method] = ports.PlayerPayload{Username: username, TutorialState: p.tutorial.Steps()}
			withInventory = true
		case ports.MethodMarkTutorialComplete:
			if step, ok := call.Params.(domain.TutorialStep); ok {
				p.tutorial[step] = struct{}{}
			}
			resp[call.Method] = ports.ResultPayload{Code: 1}
		case ports.MethodEncounterTutorialComplete:
			if pokemonID, ok := call.Params.(int); ok {
				p.addPokemon(pokemonID)
			}
			withInventory = true
			resp[call.Method] = ports.ResultPayload{Code: 1}
		case ports.MethodClaimCodename:
			if codename, ok := call.Params.(string); ok {
				p.codename = codename
			}
			resp[call.Method] = ports.ResultPayload{Code: 1}
		case ports.MethodSetBuddyPokemon:
			if id, ok := call.Params.(uint64); ok {
				p.buddyID = id
			}
			resp[call.Method] = ports.ResultPayload{Code: 1}
		case ports.MethodFortSearch:
			params, _ := call.Params.(ports.FortSearchParams)
			a.maybeFlag(p)
			resp[call.Method] = ports.ResultPayload{Code: p.fortSearch(params, now, s.random)}
		case ports.MethodRecycleInventoryItem:
			params, _ := call.Params.(ports.RecycleParams)
			a.maybeFlag(p)
			resp[call.Method] = ports.ResultPayload{Code: p.recycle(params)}
		case ports.MethodUseItemEggIncubator:
			params, _ := call.Params.(ports.IncubatorParams)
			a.maybeFlag(p)
			resp[call.Method] = ports.ResultPayload{Code: p.incubate(params)}
		case ports.MethodEncounter:
			params, _ := call.Params.(ports.EncounterParams)
			a.maybeFlag(p)
			resp[call.Method] = ports.ResultPayload{Code: p.encounter(params, s.random)}
		case ports.MethodCheckChallenge:
			// answered after the primary calls, which may flag the player
		case ports.MethodGetInventory:
			withInventory = true
		default:
			resp[call.Method] = ports.ResultPayload{Code: 1}
		}
	}

	if slices.Contains(req.Methods(), ports.MethodCheckChallenge) {
		url := noChallenge
		if p.challenged {
			url = challengeURL
		}
		resp[ports.MethodCheckChallenge] = ports.ChallengePayload{ShowChallenge: p.challenged, ChallengeURL: url}
	}
	if withInventory {
		resp[ports.MethodGetInventory] = ports.InventoryPayload{Items: p.inventory()}
	}

	return resp, nil
}

func (a *API) maybeFlag(p *player) {
	s := a.server
	if s.challengeRate > 0 && s.random.Float64() < s.challengeRate {
		p.challenged = true
	}
}
