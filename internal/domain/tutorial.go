package domain

import (
	"slices"
	"sort"
)

type TutorialStep int

const (
	TutorialLegalScreen         TutorialStep = 0
	TutorialAvatarSelection     TutorialStep = 1
	TutorialPokemonCapture      TutorialStep = 3
	TutorialNameSelection       TutorialStep = 4
	TutorialFirstTimeExperience TutorialStep = 7
)

// RequiredTutorialSteps are the onboarding steps an identity must complete
// before it can scan, in the order the client performs them.
var RequiredTutorialSteps = []TutorialStep{
	TutorialLegalScreen,
	TutorialAvatarSelection,
	TutorialPokemonCapture,
	TutorialNameSelection,
	TutorialFirstTimeExperience,
}

// StarterPokemon are the species offered by the capture step.
var StarterPokemon = []int{1, 4, 7}

type TutorialState map[TutorialStep]struct{}

func NewTutorialState(steps ...TutorialStep) TutorialState {
	state := make(TutorialState, len(steps))
	for _, step := range steps {
		state[step] = struct{}{}
	}
	return state
}

func (s TutorialState) Has(step TutorialStep) bool {
	_, ok := s[step]
	return ok
}

func (s TutorialState) Clone() TutorialState {
	clone := make(TutorialState, len(s))
	for step := range s {
		clone[step] = struct{}{}
	}
	return clone
}

func (s TutorialState) Missing() []TutorialStep {
	missing := make([]TutorialStep, 0, len(RequiredTutorialSteps))
	for _, step := range RequiredTutorialSteps {
		if !s.Has(step) {
			missing = append(missing, step)
		}
	}
	return missing
}

func (s TutorialState) Complete() bool {
	return len(s.Missing()) == 0
}

func (s TutorialState) Steps() []TutorialStep {
	steps := make([]TutorialStep, 0, len(s))
	for step := range s {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps
}

func IsStarter(pokemonID int) bool {
	return slices.Contains(StarterPokemon, pokemonID)
}
