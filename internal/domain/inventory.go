package domain

// InventoryItem is one entry of an inventory delta. Exactly one payload is
// expected to be set; entries with none are ignored.
type InventoryItem struct {
	PlayerStats   *PlayerStats
	Item          *ItemStack
	EggIncubators []EggIncubator
	Pokemon       *PokemonData
}

type PlayerStats struct {
	Level          int
	KmWalked       float64
	PokestopVisits int
	Experience     int64
}

type ItemStack struct {
	ItemID int
	Count  int
}

type EggIncubator struct {
	ID             string
	ItemID         int
	PokemonID      uint64
	UsesRemaining  int
	StartKmWalked  float64
	TargetKmWalked float64
}

func (i EggIncubator) Occupied() bool {
	return i.PokemonID != 0
}

type PokemonData struct {
	ID               uint64
	PokemonID        int
	IsEgg            bool
	EggKmTarget      float64
	EggIncubatorID   string
	Move1            int
	Move2            int
	HeightM          float64
	WeightKg         float64
	Gender           int
	CP               int
	CPMultiplier     float64
	IndividualAttack int
}

type PokemonInfo struct {
	PokemonID    int
	Move1        int
	Move2        int
	Height       float64
	Weight       float64
	Gender       int
	CP           int
	CPMultiplier float64
}

type Incubator struct {
	ID            string
	ItemID        int
	UsesRemaining int
}

type Egg struct {
	ID       uint64
	KmTarget float64
}

type Fort struct {
	ID     string
	Type   int
	Coords Coords

	// CooldownCompleteMs is the unix time in ms at which the fort can be used
	// again. Zero when the fort is not on cooldown.
	CooldownCompleteMs int64
}

const FortTypePokestop = 1

func (f Fort) IsPokestop() bool {
	return f.Type == FortTypePokestop
}
