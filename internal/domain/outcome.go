package domain

import "fmt"

type CallFamily string

const (
	FamilyFortSearch CallFamily = "fort_search"
	FamilyRecycle    CallFamily = "recycle_inventory_item"
	FamilyIncubator  CallFamily = "use_item_egg_incubator"
	FamilyEncounter  CallFamily = "encounter"
)

type OutcomeKind string

const (
	OutcomeSuccess           OutcomeKind = "success"
	OutcomeOutOfRange        OutcomeKind = "out_of_range"
	OutcomeOnCooldown        OutcomeKind = "on_cooldown"
	OutcomeInventoryFull     OutcomeKind = "inventory_full"
	OutcomeDailyLimitReached OutcomeKind = "daily_limit_reached"
	OutcomeChallengeDetected OutcomeKind = "challenge_detected"
	OutcomeAlreadyInUse      OutcomeKind = "already_in_use"
	OutcomeNotFound          OutcomeKind = "not_found"
	OutcomeWrongItemType     OutcomeKind = "wrong_item_type"
	OutcomeInsufficientItems OutcomeKind = "insufficient_items"
	OutcomeFled              OutcomeKind = "fled"
	OutcomeUnknown           OutcomeKind = "unknown"
)

// TaskOutcome is the normalized result of one remote task. Code always holds
// the raw result code reported by the remote service (0 when the call never
// produced one).
type TaskOutcome struct {
	Family       CallFamily
	Kind         OutcomeKind
	Code         int
	ChallengeURL string
	Err          error
}

func (o TaskOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

func (o TaskOutcome) Challenged() bool {
	return o.Kind == OutcomeChallengeDetected
}

func (o TaskOutcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("%s: %s (%v)", o.Family, o.Kind, o.Err)
	case o.Kind == OutcomeUnknown:
		return fmt.Sprintf("%s: %s(%d)", o.Family, o.Kind, o.Code)
	default:
		return fmt.Sprintf("%s: %s", o.Family, o.Kind)
	}
}

var resultCodes = map[CallFamily]map[int]OutcomeKind{
	FamilyFortSearch: {
		1: OutcomeSuccess,
		2: OutcomeOutOfRange,
		3: OutcomeOnCooldown,
		4: OutcomeInventoryFull,
		5: OutcomeDailyLimitReached,
	},
	FamilyRecycle: {
		1: OutcomeSuccess,
		2: OutcomeInsufficientItems,
		3: OutcomeWrongItemType,
	},
	FamilyIncubator: {
		1: OutcomeSuccess,
		2: OutcomeNotFound,
		3: OutcomeNotFound,
		4: OutcomeWrongItemType,
		5: OutcomeAlreadyInUse,
		6: OutcomeAlreadyInUse,
		7: OutcomeInsufficientItems,
	},
	FamilyEncounter: {
		1: OutcomeSuccess,
		2: OutcomeNotFound,
		3: OutcomeNotFound,
		4: OutcomeFled,
		5: OutcomeOutOfRange,
		6: OutcomeAlreadyInUse,
		7: OutcomeInventoryFull,
	},
}

// Classify maps a raw result code of the given call family to an outcome.
// Codes outside the documented set, and unknown families, yield OutcomeUnknown.
func Classify(family CallFamily, code int) TaskOutcome {
	outcome := TaskOutcome{Family: family, Kind: OutcomeUnknown, Code: code}
	if kind, ok := resultCodes[family][code]; ok {
		outcome.Kind = kind
	}

	return outcome
}

// ChallengeOutcome overrides whatever code came back with a challenge. The
// code is kept for diagnostics; zero means no call was made.
func ChallengeOutcome(family CallFamily, code int, url string) TaskOutcome {
	return TaskOutcome{Family: family, Kind: OutcomeChallengeDetected, Code: code, ChallengeURL: url}
}

func TransportFailure(family CallFamily, err error) TaskOutcome {
	return TaskOutcome{Family: family, Kind: OutcomeUnknown, Err: err}
}
