package domain

const (
	ItemPokeBall     = 1
	ItemGreatBall    = 2
	ItemUltraBall    = 3
	ItemMasterBall   = 4
	ItemPotion       = 101
	ItemSuperPotion  = 102
	ItemHyperPotion  = 103
	ItemMaxPotion    = 104
	ItemRevive       = 201
	ItemMaxRevive    = 202
	ItemRazzBerry    = 701
	ItemBlukBerry    = 702
	ItemNanabBerry   = 703
	ItemWeparBerry   = 704
	ItemPinapBerry   = 705
	ItemSunStone     = 1101
	ItemKingsRock    = 1102
	ItemMetalCoat    = 1103
	ItemDragonScale  = 1104
	ItemUpgrade      = 1105
	ItemIncubatorInf = 901
	ItemIncubator    = 902
)

var itemNames = map[int]string{
	ItemPokeBall:     "Poke Ball",
	ItemGreatBall:    "Great Ball",
	ItemUltraBall:    "Ultra Ball",
	ItemMasterBall:   "Master Ball",
	ItemPotion:       "Potion",
	ItemSuperPotion:  "Super Potion",
	ItemHyperPotion:  "Hyper Potion",
	ItemMaxPotion:    "Max Potion",
	ItemRevive:       "Revive",
	ItemMaxRevive:    "Max Revive",
	ItemRazzBerry:    "Razz Berry",
	ItemBlukBerry:    "Bluk Berry",
	ItemNanabBerry:   "Nanab Berry",
	ItemWeparBerry:   "Wepar Berry",
	ItemPinapBerry:   "Pinap Berry",
	ItemSunStone:     "Sun Stone",
	ItemKingsRock:    "Kings Rock",
	ItemMetalCoat:    "Metal Coat",
	ItemDragonScale:  "Dragon Scale",
	ItemUpgrade:      "Upgrade",
	ItemIncubatorInf: "Egg Incubator (unlimited)",
	ItemIncubator:    "Egg Incubator",
}

// RecyclableItems lists, in recycle order, the item kinds inventory clearing
// may drop. Master balls and incubators are never recycled.
var RecyclableItems = []int{
	ItemPokeBall, ItemGreatBall, ItemUltraBall,
	ItemPotion, ItemSuperPotion, ItemHyperPotion, ItemMaxPotion,
	ItemRevive, ItemMaxRevive,
	ItemRazzBerry, ItemNanabBerry, ItemPinapBerry,
	ItemSunStone, ItemKingsRock, ItemMetalCoat, ItemDragonScale, ItemUpgrade,
}

func ItemName(id int) string {
	if name, ok := itemNames[id]; ok {
		return name
	}
	return "unknown"
}
