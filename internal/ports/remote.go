package ports

import (
	"context"
	"strings"
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
)

// RemoteAPI is an authenticated client of the remote game service. Encoding
// and transport are the implementation's concern.
type RemoteAPI interface {
	// Authenticate returns an error wrapping domain.ErrAuthFailed when the
	// remote side rejects the credentials.
	Authenticate(ctx context.Context, creds domain.Credentials, proxy *domain.Proxy) error
	// TicketExpiresAt is the zero time until the first successful login.
	TicketExpiresAt() time.Time
	Call(ctx context.Context, req *Request) (Response, error)
}

type RemoteFactory interface {
	NewAPI(device domain.DeviceInfo, proxy *domain.Proxy) RemoteAPI
}

type Method string

const (
	MethodGetPlayer                 Method = "GET_PLAYER"
	MethodGetPlayerProfile          Method = "GET_PLAYER_PROFILE"
	MethodMarkTutorialComplete      Method = "MARK_TUTORIAL_COMPLETE"
	MethodSetAvatar                 Method = "SET_AVATAR"
	MethodGetDownloadURLs           Method = "GET_DOWNLOAD_URLS"
	MethodEncounterTutorialComplete Method = "ENCOUNTER_TUTORIAL_COMPLETE"
	MethodClaimCodename             Method = "CLAIM_CODENAME"
	MethodSetBuddyPokemon           Method = "SET_BUDDY_POKEMON"
	MethodFortSearch                Method = "FORT_SEARCH"
	MethodEncounter                 Method = "ENCOUNTER"
	MethodRecycleInventoryItem      Method = "RECYCLE_INVENTORY_ITEM"
	MethodUseItemEggIncubator       Method = "USE_ITEM_EGG_INCUBATOR"
	MethodCheckChallenge            Method = "CHECK_CHALLENGE"
	MethodGetHatchedEggs            Method = "GET_HATCHED_EGGS"
	MethodGetInventory              Method = "GET_INVENTORY"
	MethodCheckAwardedBadges        Method = "CHECK_AWARDED_BADGES"
	MethodGetBuddyWalked            Method = "GET_BUDDY_WALKED"
)

// AuxiliaryMethods ride along with every task call, the way the official
// client batches them.
var AuxiliaryMethods = []Method{
	MethodCheckChallenge,
	MethodGetHatchedEggs,
	MethodGetInventory,
	MethodCheckAwardedBadges,
	MethodGetBuddyWalked,
}

type PlayerLocale struct {
	Country  string
	Language string
	Timezone string
}

var DefaultLocale = PlayerLocale{Country: "US", Language: "en", Timezone: "America/Denver"}

type Avatar struct {
	Hair     int
	Shirt    int
	Pants    int
	Shoes    int
	Avatar   int
	Eyes     int
	Backpack int
}

type FortSearchParams struct {
	FortID string
	Fort   domain.Coords
	Player domain.Coords
}

type EncounterParams struct {
	EncounterID  uint64
	SpawnPointID string
	Player       domain.Coords
}

type RecycleParams struct {
	ItemID int
	Count  int
}

type IncubatorParams struct {
	IncubatorID string
	EggID       uint64
}

type Call struct {
	Method Method
	Params any
}

// Request batches calls into one envelope. A request without calls is valid
// and is sent as an empty envelope.
type Request struct {
	calls []Call
}

func NewRequest() *Request {
	return &Request{}
}

func (r *Request) Calls() []Call {
	return append([]Call(nil), r.calls...)
}

func (r *Request) Methods() []Method {
	methods := make([]Method, 0, len(r.calls))
	for _, call := range r.calls {
		methods = append(methods, call.Method)
	}
	return methods
}

func (r *Request) add(method Method, params any) *Request {
	r.calls = append(r.calls, Call{Method: method, Params: params})
	return r
}

func (r *Request) GetPlayer(locale PlayerLocale) *Request {
	return r.add(MethodGetPlayer, locale)
}

func (r *Request) GetPlayerProfile() *Request {
	return r.add(MethodGetPlayerProfile, nil)
}

func (r *Request) MarkTutorialComplete(step domain.TutorialStep) *Request {
	return r.add(MethodMarkTutorialComplete, step)
}

func (r *Request) SetAvatar(avatar Avatar) *Request {
	return r.add(MethodSetAvatar, avatar)
}

func (r *Request) GetDownloadURLs(assetIDs []string) *Request {
	return r.add(MethodGetDownloadURLs, assetIDs)
}

func (r *Request) EncounterTutorialComplete(pokemonID int) *Request {
	return r.add(MethodEncounterTutorialComplete, pokemonID)
}

func (r *Request) ClaimCodename(codename string) *Request {
	return r.add(MethodClaimCodename, codename)
}

func (r *Request) SetBuddyPokemon(pokemonID uint64) *Request {
	return r.add(MethodSetBuddyPokemon, pokemonID)
}

func (r *Request) FortSearch(params FortSearchParams) *Request {
	return r.add(MethodFortSearch, params)
}

func (r *Request) Encounter(params EncounterParams) *Request {
	return r.add(MethodEncounter, params)
}

func (r *Request) RecycleInventoryItem(itemID, count int) *Request {
	return r.add(MethodRecycleInventoryItem, RecycleParams{ItemID: itemID, Count: count})
}

func (r *Request) UseItemEggIncubator(incubatorID string, eggID uint64) *Request {
	return r.add(MethodUseItemEggIncubator, IncubatorParams{IncubatorID: incubatorID, EggID: eggID})
}

// WithAuxiliary appends the fixed set of bookkeeping calls.
func (r *Request) WithAuxiliary() *Request {
	for _, method := range AuxiliaryMethods {
		r.add(method, nil)
	}
	return r
}

// Response payloads, keyed by method.
type (
	ChallengePayload struct {
		ShowChallenge bool
		ChallengeURL  string
	}

	ResultPayload struct {
		Code int
	}

	InventoryPayload struct {
		Items []domain.InventoryItem
	}

	PlayerPayload struct {
		Username      string
		TutorialState []domain.TutorialStep
	}
)

type Response map[Method]any

// ChallengeURL returns the challenge link, or "" when none was issued. The
// remote side reports "no challenge" as a single blank character.
func (r Response) ChallengeURL() string {
	payload, ok := r[MethodCheckChallenge].(ChallengePayload)
	if !ok {
		return ""
	}
	return strings.TrimSpace(payload.ChallengeURL)
}

// Result returns the primary result code of a task call.
func (r Response) Result(method Method) (int, bool) {
	payload, ok := r[method].(ResultPayload)
	if !ok {
		return 0, false
	}
	return payload.Code, true
}

func (r Response) InventoryItems() []domain.InventoryItem {
	payload, ok := r[MethodGetInventory].(InventoryPayload)
	if !ok {
		return nil
	}
	return payload.Items
}

func (r Response) TutorialState() (domain.TutorialState, bool) {
	payload, ok := r[MethodGetPlayer].(PlayerPayload)
	if !ok {
		return nil, false
	}
	return domain.NewTutorialState(payload.TutorialState...), true
}
