package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/pogo-accounts/internal/domain"
)

const (
	minKeptItems = 5
	maxKeptItems = 10
)

type InventorySummary struct {
	Items      int
	Pokemon    int
	Eggs       int
	Incubators int
}

// ParseInventory folds an inventory delta into the account. The delta is the
// authoritative snapshot: item, pokemon, incubator and egg caches are
// replaced, not merged. A nil delta leaves the account untouched.
func ParseInventory(account *domain.Account, items []domain.InventoryItem, logger *zap.Logger) InventorySummary {
	var summary InventorySummary
	if items == nil {
		return summary
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	held := make(map[int]int)
	pokemon := make(map[uint64]domain.PokemonInfo)
	var incubators []domain.Incubator
	var eggs []domain.Egg
	var occupied []domain.EggIncubator

	for _, item := range items {
		switch {
		case item.PlayerStats != nil:
			account.Level = item.PlayerStats.Level
			account.SpinCount = item.PlayerStats.PokestopVisits
			account.WalkedKm = item.PlayerStats.KmWalked
		case item.Item != nil:
			held[item.Item.ItemID] += item.Item.Count
			summary.Items += item.Item.Count
		case len(item.EggIncubators) > 0:
			for _, incubator := range item.EggIncubators {
				if incubator.Occupied() {
					occupied = append(occupied, incubator)
					continue
				}
				incubators = append(incubators, domain.Incubator{
					ID:            incubator.ID,
					ItemID:        incubator.ItemID,
					UsesRemaining: incubator.UsesRemaining,
				})
			}
		case item.Pokemon != nil && item.Pokemon.ID != 0:
			data := item.Pokemon
			if !data.IsEgg {
				pokemon[data.ID] = domain.PokemonInfo{
					PokemonID:    data.PokemonID,
					Move1:        data.Move1,
					Move2:        data.Move2,
					Height:       data.HeightM,
					Weight:       data.WeightKg,
					Gender:       data.Gender,
					CP:           data.CP,
					CPMultiplier: data.CPMultiplier,
				}
				continue
			}
			if data.EggIncubatorID != "" {
				continue
			}
			eggs = append(eggs, domain.Egg{ID: data.ID, KmTarget: data.EggKmTarget})
		}
	}

	for _, incubator := range occupied {
		logger.Debug("egg incubating",
			zap.String("account", account.Username),
			zap.String("incubator", incubator.ID),
			zap.Float64("km_remaining", incubator.TargetKmWalked-account.WalkedKm),
		)
	}

	account.Items = held
	account.Pokemon = pokemon
	account.Incubators = incubators
	account.Eggs = eggs

	summary.Pokemon = len(pokemon)
	summary.Eggs = len(eggs)
	summary.Incubators = len(incubators)
	logger.Info("parsed inventory",
		zap.String("account", account.Username),
		zap.Int("level", account.Level),
		zap.Int("items", summary.Items),
		zap.Int("pokemon", summary.Pokemon),
		zap.Int("eggs", summary.Eggs),
		zap.Int("incubators", summary.Incubators),
	)

	return summary
}

// PlayerLevel returns the level reported by the delta's player stats, 1 when
// the stats carry none, or 0 when the delta has no stats at all.
func PlayerLevel(items []domain.InventoryItem) int {
	for _, item := range items {
		if item.PlayerStats == nil {
			continue
		}
		if item.PlayerStats.Level == 0 {
			return 1
		}
		return item.PlayerStats.Level
	}
	return 0
}

// CleanupAccountStats recomputes the hourly spin rate and forgets pokestops
// whose revisit timeout has passed.
func CleanupAccountStats(account *domain.Account, pokestopTimeout time.Duration, now time.Time) {
	elapsed := math.Max(now.Sub(account.StartedAt).Seconds(), 1)
	account.HourSpinRate = float64(account.SessionSpins) * 3600 / elapsed

	for fortID, usedAt := range account.UsedPokestops {
		if !usedAt.Add(pokestopTimeout).After(now) {
			delete(account.UsedPokestops, fortID)
		}
	}
}

// ClearInventory recycles the surplus of every recyclable item. Each item
// draws its own keep amount in [5, 10]; holdings above it are recycled down
// to it. A challenge aborts the remaining list. It returns the number of
// recycle calls that succeeded.
func (s *Session) ClearInventory(ctx context.Context) (int, error) {
	p := s.engine.pacer
	recycled := 0

	for _, itemID := range domain.RecyclableItems {
		count := s.account.Items[itemID]
		keep := p.between(minKeptItems, maxKeptItems)
		if count <= keep {
			continue
		}
		drop := count - keep

		if err := p.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
			return recycled, err
		}

		result := s.RecycleItem(ctx, itemID, drop)
		logger := s.logger.With(zap.String("item", domain.ItemName(itemID)), zap.Int("count", drop))
		switch result.Kind {
		case domain.OutcomeSuccess:
			s.account.Items[itemID] = keep
			recycled++
			logger.Info("recycled items")
		case domain.OutcomeChallengeDetected:
			return recycled, fmt.Errorf("clear inventory: %w", domain.ErrSessionQuarantined)
		case domain.OutcomeInsufficientItems, domain.OutcomeWrongItemType:
			logger.Debug("recycle rejected, cached inventory is stale", zap.Stringer("outcome", result.TaskOutcome))
		default:
			logger.Warn("failed to recycle items", zap.Stringer("outcome", result.TaskOutcome))
		}
	}

	return recycled, nil
}

// IncubateEggs pairs free incubators with free eggs, shortest km target
// first. A rejected assignment leaves both the incubator and the egg free
// and moves on to the next pair; a challenge aborts the batch.
func (s *Session) IncubateEggs(ctx context.Context) (int, error) {
	p := s.engine.pacer

	eggs := append([]domain.Egg(nil), s.account.Eggs...)
	sort.SliceStable(eggs, func(i, j int) bool { return eggs[i].KmTarget < eggs[j].KmTarget })

	incubators := s.account.Incubators
	free := make([]domain.Incubator, 0, len(incubators))
	placed := make(map[uint64]struct{})
	assigned := 0

	finish := func(err error) (int, error) {
		remaining := make([]domain.Egg, 0, len(eggs))
		for _, egg := range eggs {
			if _, ok := placed[egg.ID]; !ok {
				remaining = append(remaining, egg)
			}
		}
		s.account.Eggs = remaining
		s.account.Incubators = free
		return assigned, err
	}

	next := 0
	for i, incubator := range incubators {
		if next >= len(eggs) {
			s.logger.Debug("no eggs left to incubate")
			free = append(free, incubators[i:]...)
			break
		}
		egg := eggs[next]
		next++

		if err := p.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
			free = append(free, incubators[i:]...)
			return finish(err)
		}

		result := s.UseIncubator(ctx, incubator.ID, egg.ID)
		switch {
		case result.Succeeded():
			placed[egg.ID] = struct{}{}
			assigned++
			s.logger.Info("egg placed in incubator",
				zap.Uint64("egg", egg.ID),
				zap.Float64("km", egg.KmTarget),
				zap.String("incubator", incubator.ID),
			)
		case result.Challenged():
			free = append(free, incubators[i:]...)
			return finish(fmt.Errorf("incubate eggs: %w", domain.ErrSessionQuarantined))
		default:
			free = append(free, incubator)
			s.logger.Error("failed to put egg in incubator",
				zap.String("incubator", incubator.ID),
				zap.Stringer("outcome", result.TaskOutcome),
			)
		}
	}

	return finish(nil)
}
