package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

// Assets the official client fetches before the starter encounter.
var tutorialAssetIDs = []string{
	"1a3c2816-65fa-4b97-90eb-0b301c064b7a/1477084786906000",
	"aa8f7687-a022-4773-b900-3a8c170e9aea/1477084794890000",
	"e89109b0-9a54-40fe-8431-12f7826c8194/1477084802881000",
}

// TutorialState fetches the set of onboarding steps the identity completed.
func (s *Session) TutorialState(ctx context.Context) (domain.TutorialState, error) {
	if s.Quarantined() {
		return nil, domain.ErrSessionQuarantined
	}

	s.logger.Debug("checking tutorial state")
	resp, err := s.call(ctx, ports.NewRequest().GetPlayer(ports.DefaultLocale))
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}

	state, ok := resp.TutorialState()
	if !ok {
		state = domain.NewTutorialState()
	}

	if err := s.engine.pacer.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return state, err
	}
	return state, nil
}

// CompleteTutorial performs the required steps missing from state, in order.
// The returned state holds every step completed so far, also on error, so
// calling again with it resumes where the previous run stopped.
func (s *Session) CompleteTutorial(ctx context.Context, state domain.TutorialState) (domain.TutorialState, error) {
	if s.Quarantined() {
		return state, domain.ErrSessionQuarantined
	}

	completed := state.Clone()
	if completed.Complete() {
		return completed, nil
	}
	s.state = domain.SessionOnboarding
	p := s.engine.pacer

	if !completed.Has(domain.TutorialLegalScreen) {
		if err := s.tutorialCall(ctx, 1, 5, ports.NewRequest().MarkTutorialComplete(domain.TutorialLegalScreen)); err != nil {
			return completed, fmt.Errorf("tutorial step %d: %w", domain.TutorialLegalScreen, err)
		}
		completed[domain.TutorialLegalScreen] = struct{}{}
	}

	if !completed.Has(domain.TutorialAvatarSelection) {
		avatar := ports.Avatar{
			Hair:     p.between(1, 5),
			Shirt:    p.between(1, 3),
			Pants:    p.between(1, 2),
			Shoes:    p.between(1, 6),
			Avatar:   p.between(0, 1),
			Eyes:     p.between(1, 4),
			Backpack: p.between(1, 5),
		}
		if err := s.tutorialCall(ctx, 5, 12, ports.NewRequest().SetAvatar(avatar)); err != nil {
			return completed, fmt.Errorf("tutorial step %d: %w", domain.TutorialAvatarSelection, err)
		}
		if err := s.tutorialCall(ctx, 0.3, 0.5, ports.NewRequest().MarkTutorialComplete(domain.TutorialAvatarSelection)); err != nil {
			return completed, fmt.Errorf("tutorial step %d: %w", domain.TutorialAvatarSelection, err)
		}
		completed[domain.TutorialAvatarSelection] = struct{}{}
	}

	var starterID uint64
	if !completed.Has(domain.TutorialPokemonCapture) {
		id, err := s.catchStarter(ctx)
		if err != nil {
			return completed, fmt.Errorf("tutorial step %d: %w", domain.TutorialPokemonCapture, err)
		}
		starterID = id
		completed[domain.TutorialPokemonCapture] = struct{}{}
	}

	if !completed.Has(domain.TutorialNameSelection) {
		steps := []struct {
			min, max float64
			req      *ports.Request
		}{
			{5, 12, ports.NewRequest().ClaimCodename(s.account.Username)},
			{1, 1.3, ports.NewRequest().MarkTutorialComplete(domain.TutorialNameSelection)},
			{0.1, 0.1, ports.NewRequest().GetPlayer(ports.DefaultLocale)},
		}
		for _, step := range steps {
			if err := s.tutorialCall(ctx, step.min, step.max, step.req); err != nil {
				return completed, fmt.Errorf("tutorial step %d: %w", domain.TutorialNameSelection, err)
			}
		}
		completed[domain.TutorialNameSelection] = struct{}{}
	}

	if !completed.Has(domain.TutorialFirstTimeExperience) {
		if err := s.tutorialCall(ctx, 4, 10, ports.NewRequest().MarkTutorialComplete(domain.TutorialFirstTimeExperience)); err != nil {
			return completed, fmt.Errorf("tutorial step %d: %w", domain.TutorialFirstTimeExperience, err)
		}
		completed[domain.TutorialFirstTimeExperience] = struct{}{}
	}

	if starterID != 0 {
		if err := s.tutorialCall(ctx, 3, 5, ports.NewRequest().SetBuddyPokemon(starterID)); err != nil {
			return completed, fmt.Errorf("set buddy: %w", err)
		}
		s.account.BuddyID = starterID
		if err := p.pause(ctx, seconds(0.8), seconds(1.8)); err != nil {
			return completed, err
		}
	}

	s.logger.Debug("tutorial done", zap.Any("steps", completed.Steps()))
	if err := p.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return completed, err
	}

	return completed, nil
}

// catchStarter runs the capture step and returns the id of the caught
// starter, or 0 when the inventory delta did not carry one.
func (s *Session) catchStarter(ctx context.Context) (uint64, error) {
	p := s.engine.pacer

	if err := s.tutorialCall(ctx, 0.5, 0.6, ports.NewRequest().GetPlayerProfile()); err != nil {
		return 0, err
	}
	if err := s.tutorialCall(ctx, 1, 1.5, ports.NewRequest().GetDownloadURLs(tutorialAssetIDs)); err != nil {
		return 0, err
	}
	if err := s.tutorialCall(ctx, 1, 1.6, ports.NewRequest()); err != nil {
		return 0, err
	}

	starter := domain.StarterPokemon[p.random.IntN(len(domain.StarterPokemon))]
	s.logger.Debug("catching the starter", zap.Int("pokemon_id", starter))
	if err := s.tutorialCall(ctx, 6, 13, ports.NewRequest().EncounterTutorialComplete(starter)); err != nil {
		return 0, err
	}

	if err := p.pause(ctx, seconds(0.5), seconds(0.6)); err != nil {
		return 0, err
	}
	resp, err := s.call(ctx, ports.NewRequest().GetPlayer(ports.DefaultLocale))
	if err != nil {
		return 0, err
	}

	var starterID uint64
	for _, item := range resp.InventoryItems() {
		if item.Pokemon != nil && item.Pokemon.ID != 0 {
			starterID = item.Pokemon.ID
		}
	}
	return starterID, nil
}

// tutorialCall pauses for a duration drawn from [min, max] seconds and sends req.
func (s *Session) tutorialCall(ctx context.Context, min, max float64, req *ports.Request) error {
	if err := s.engine.pacer.pause(ctx, seconds(min), seconds(max)); err != nil {
		return err
	}
	_, err := s.call(ctx, req)
	return err
}

func (s *Session) call(ctx context.Context, req *ports.Request) (ports.Response, error) {
	if s.api == nil {
		return nil, fmt.Errorf("session %s is closed", s.id)
	}
	return s.api.Call(ctx, req)
}
