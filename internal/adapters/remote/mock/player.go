package mock

import (
	"maps"
	"slices"
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

const (
	fortCooldown    = 5 * time.Minute
	dailySpinLimit  = 1200
	maxEggs         = 9
	maxLevel        = 40
	visitsPerLevel  = 10
	starterBalls    = 50
	itemsPerSpin    = 3
	eggChance       = 0.15
	encounterFlee   = 0.2
	infiniteIncubID = "EggIncubatorProto-infinite"
)

var spinRewards = []int{
	domain.ItemPokeBall, domain.ItemPokeBall, domain.ItemGreatBall,
	domain.ItemPotion, domain.ItemRevive, domain.ItemRazzBerry,
}

var eggDistances = []float64{2, 5, 10}

// player is the server-side state of one identity. Guarded by the owning
// Server's mutex.
type player struct {
	codename   string
	tutorial   domain.TutorialState
	visits     int
	kmWalked   float64
	buddyID    uint64
	challenged bool

	items      map[int]int
	pokemon    map[uint64]*domain.PokemonData
	incubators []domain.EggIncubator
	forts      map[string]time.Time
	nextID     uint64
}

func newPlayer(completeTutorial bool) *player {
	p := &player{
		tutorial: domain.NewTutorialState(),
		items:    map[int]int{domain.ItemPokeBall: starterBalls},
		pokemon:  map[uint64]*domain.PokemonData{},
		incubators: []domain.EggIncubator{
			{ID: infiniteIncubID, ItemID: domain.ItemIncubatorInf},
		},
		forts:  map[string]time.Time{},
		nextID: 1000,
	}
	if completeTutorial {
		p.tutorial = domain.NewTutorialState(domain.RequiredTutorialSteps...)
	}
	return p
}

func (p *player) level() int {
	if p.visits == 0 {
		return 1
	}
	return min(maxLevel, 2+(p.visits-1)/visitsPerLevel)
}

func (p *player) itemTotal() int {
	total := 0
	for _, count := range p.items {
		total += count
	}
	return total
}

func (p *player) newID() uint64 {
	p.nextID++
	return p.nextID
}

func (p *player) addPokemon(pokemonID int) uint64 {
	id := p.newID()
	p.pokemon[id] = &domain.PokemonData{ID: id, PokemonID: pokemonID, CP: 10, CPMultiplier: 0.094}
	return id
}

func (p *player) eggCount() int {
	eggs := 0
	for _, data := range p.pokemon {
		if data.IsEgg {
			eggs++
		}
	}
	return eggs
}

func (p *player) fortSearch(params ports.FortSearchParams, now time.Time, random ports.Random) int {
	if !domain.InRadius(params.Fort, params.Player, domain.TutorialSpinRadiusKm) {
		return 2
	}
	if until, ok := p.forts[params.FortID]; ok && until.After(now) {
		return 3
	}
	if p.itemTotal() >= domain.DefaultMaxItems {
		return 4
	}
	if p.visits >= dailySpinLimit {
		return 5
	}

	p.forts[params.FortID] = now.Add(fortCooldown)
	p.visits++
	for i := 0; i < itemsPerSpin; i++ {
		p.items[spinRewards[random.IntN(len(spinRewards))]]++
	}
	if p.eggCount() < maxEggs && random.Float64() < eggChance {
		id := p.newID()
		p.pokemon[id] = &domain.PokemonData{
			ID:          id,
			IsEgg:       true,
			EggKmTarget: eggDistances[random.IntN(len(eggDistances))],
		}
	}
	return 1
}

func (p *player) recycle(params ports.RecycleParams) int {
	if params.ItemID == domain.ItemMasterBall || params.ItemID == domain.ItemIncubator || params.ItemID == domain.ItemIncubatorInf {
		return 3
	}
	if params.Count <= 0 || p.items[params.ItemID] < params.Count {
		return 2
	}
	p.items[params.ItemID] -= params.Count
	if p.items[params.ItemID] == 0 {
		delete(p.items, params.ItemID)
	}
	return 1
}

func (p *player) incubate(params ports.IncubatorParams) int {
	egg, ok := p.pokemon[params.EggID]
	if !ok || !egg.IsEgg {
		return 3
	}
	if egg.EggIncubatorID != "" {
		return 6
	}
	for i := range p.incubators {
		incubator := &p.incubators[i]
		if incubator.ID != params.IncubatorID {
			continue
		}
		if incubator.Occupied() {
			return 5
		}
		incubator.PokemonID = egg.ID
		incubator.StartKmWalked = p.kmWalked
		incubator.TargetKmWalked = p.kmWalked + egg.EggKmTarget
		egg.EggIncubatorID = incubator.ID
		return 1
	}
	return 2
}

func (p *player) encounter(params ports.EncounterParams, random ports.Random) int {
	if len(p.pokemon) >= domain.DefaultMaxPokemon {
		return 7
	}
	if p.items[domain.ItemPokeBall] == 0 || random.Float64() < encounterFlee {
		return 4
	}
	p.items[domain.ItemPokeBall]--
	p.addPokemon(int(params.EncounterID%151) + 1)
	return 1
}

// inventory is a full snapshot of the player's state.
func (p *player) inventory() []domain.InventoryItem {
	items := []domain.InventoryItem{{
		PlayerStats: &domain.PlayerStats{
			Level:          p.level(),
			KmWalked:       p.kmWalked,
			PokestopVisits: p.visits,
		},
	}}
	for _, id := range slices.Sorted(maps.Keys(p.items)) {
		items = append(items, domain.InventoryItem{Item: &domain.ItemStack{ItemID: id, Count: p.items[id]}})
	}
	items = append(items, domain.InventoryItem{
		EggIncubators: append([]domain.EggIncubator(nil), p.incubators...),
	})
	for _, id := range slices.Sorted(maps.Keys(p.pokemon)) {
		copied := *p.pokemon[id]
		items = append(items, domain.InventoryItem{Pokemon: &copied})
	}
	return items
}
