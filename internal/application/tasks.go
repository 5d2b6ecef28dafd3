package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

var familyMethods = map[domain.CallFamily]ports.Method{
	domain.FamilyFortSearch: ports.MethodFortSearch,
	domain.FamilyRecycle:    ports.MethodRecycleInventoryItem,
	domain.FamilyIncubator:  ports.MethodUseItemEggIncubator,
	domain.FamilyEncounter:  ports.MethodEncounter,
}

// TaskResult is a classified task outcome plus the inventory delta that
// came back in the same batch.
type TaskResult struct {
	domain.TaskOutcome
	Inventory []domain.InventoryItem
}

func (s *Session) SpinPokestop(ctx context.Context, fort domain.Fort, position domain.Coords) TaskResult {
	return s.execute(ctx, domain.FamilyFortSearch, ports.NewRequest().FortSearch(ports.FortSearchParams{
		FortID: fort.ID,
		Fort:   fort.Coords,
		Player: position,
	}))
}

func (s *Session) RecycleItem(ctx context.Context, itemID, count int) TaskResult {
	return s.execute(ctx, domain.FamilyRecycle, ports.NewRequest().RecycleInventoryItem(itemID, count))
}

func (s *Session) UseIncubator(ctx context.Context, incubatorID string, eggID uint64) TaskResult {
	return s.execute(ctx, domain.FamilyIncubator, ports.NewRequest().UseItemEggIncubator(incubatorID, eggID))
}

func (s *Session) Encounter(ctx context.Context, encounterID uint64, spawnPointID string, position domain.Coords) TaskResult {
	return s.execute(ctx, domain.FamilyEncounter, ports.NewRequest().Encounter(ports.EncounterParams{
		EncounterID:  encounterID,
		SpawnPointID: spawnPointID,
		Player:       position,
	}))
}

// execute sends the primary call together with the auxiliary refreshes.
// A challenge in the response wins over the primary result code.
func (s *Session) execute(ctx context.Context, family domain.CallFamily, req *ports.Request) TaskResult {
	if s.Quarantined() {
		return TaskResult{TaskOutcome: domain.ChallengeOutcome(family, 0, s.challengeURL)}
	}

	resp, err := s.call(ctx, req.WithAuxiliary())
	if err != nil {
		s.logger.Warn("remote call failed", zap.String("family", string(family)), zap.Error(err))
		return s.record(TaskResult{TaskOutcome: domain.TransportFailure(family, err)})
	}

	result := TaskResult{Inventory: resp.InventoryItems()}
	code, _ := resp.Result(familyMethods[family])
	if url := resp.ChallengeURL(); url != "" {
		s.quarantine(ctx, url)
		result.TaskOutcome = domain.ChallengeOutcome(family, code, url)
		return s.record(result)
	}

	result.TaskOutcome = domain.Classify(family, code)
	if result.Kind == domain.OutcomeUnknown {
		s.logger.Debug("unrecognized result code",
			zap.String("family", string(family)),
			zap.Int("code", code),
		)
	}

	return s.record(result)
}

func (s *Session) record(result TaskResult) TaskResult {
	s.engine.metrics.TaskOutcomes.WithLabelValues(string(result.Family), string(result.Kind)).Inc()
	return result
}

// Spinnable reports whether fort is within spinning range of position and
// off its own cooldown.
func Spinnable(fort domain.Fort, position domain.Coords, now time.Time) bool {
	if !domain.InRadius(fort.Coords, position, domain.SpinRadiusKm) {
		return false
	}
	if fort.CooldownCompleteMs > 0 && time.UnixMilli(fort.CooldownCompleteMs).After(now) {
		return false
	}
	return true
}

// SpinningTry spins fort with the configured probability unless the account
// is above its hourly spin budget. A successful spin refreshes the
// inventory, recycles surplus items and incubates eggs.
func (s *Session) SpinningTry(ctx context.Context, fort domain.Fort, position domain.Coords) (bool, error) {
	config := s.engine.config
	if s.account.HourSpinRate > float64(config.AccountMaxSpins) {
		s.logger.Info("account reached its spinning limit", zap.Float64("hour_spins", s.account.HourSpinRate))
		return false, nil
	}
	if !s.engine.pacer.chance(config.SpinChance) {
		return false, nil
	}

	if err := s.engine.pacer.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return false, err
	}

	result := s.SpinPokestop(ctx, fort, position)
	logger := s.logger.With(zap.String("fort", fort.ID))
	switch result.Kind {
	case domain.OutcomeSuccess:
		logger.Info("pokestop spun")
		ParseInventory(s.account, result.Inventory, s.logger)
		s.account.SessionSpins++
		s.markUsed(fort)
		if _, err := s.ClearInventory(ctx); err != nil {
			return true, err
		}
		if _, err := s.IncubateEggs(ctx); err != nil {
			return true, err
		}
		return true, nil
	case domain.OutcomeInventoryFull:
		logger.Info("inventory full, clearing")
		if _, err := s.ClearInventory(ctx); err != nil {
			return false, err
		}
	case domain.OutcomeChallengeDetected:
		return false, domain.ErrSessionQuarantined
	default:
		logger.Info("pokestop not spun", zap.Stringer("outcome", result.TaskOutcome))
	}

	return false, nil
}

// TutorialPokestopSpin levels up a fresh account by spinning the first
// pokestop in range. Accounts above level 1 are left alone.
func (s *Session) TutorialPokestopSpin(ctx context.Context, level int, forts []domain.Fort, position domain.Coords) (bool, error) {
	if level > 1 {
		s.logger.Debug("no need to spin a pokestop", zap.Int("level", level))
		return false, nil
	}

	p := s.engine.pacer
	for _, fort := range forts {
		if !fort.IsPokestop() || !domain.InRadius(fort.Coords, position, domain.TutorialSpinRadiusKm) {
			continue
		}

		if err := p.pause(ctx, seconds(0.8), seconds(1.8)); err != nil {
			return false, err
		}
		result := s.SpinPokestop(ctx, fort, position)
		if err := p.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
			return false, err
		}

		if result.Challenged() {
			return false, domain.ErrSessionQuarantined
		}
		if result.Succeeded() {
			ParseInventory(s.account, result.Inventory, s.logger)
			s.markUsed(fort)
			s.logger.Debug("spun a pokestop after the tutorial", zap.String("fort", fort.ID))
			return true, nil
		}
	}

	return false, nil
}

func (s *Session) markUsed(fort domain.Fort) {
	if s.account.UsedPokestops == nil {
		s.account.UsedPokestops = make(map[string]time.Time)
	}
	s.account.UsedPokestops[fort.ID] = s.engine.clock.Now()
}
