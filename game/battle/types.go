package battle

// Elemental type names, lower-case as served by PokeAPI.
const (
	TypeNormal   = "normal"
	TypeFire     = "fire"
	TypeWater    = "water"
	TypeElectric = "electric"
	TypeGrass    = "grass"
	TypeIce      = "ice"
	TypeFighting = "fighting"
	TypePoison   = "poison"
	TypeGround   = "ground"
	TypeFlying   = "flying"
	TypePsychic  = "psychic"
	TypeBug      = "bug"
	TypeRock     = "rock"
	TypeGhost    = "ghost"
	TypeDragon   = "dragon"
	TypeDark     = "dark"
	TypeSteel    = "steel"
	TypeFairy    = "fairy"
)

// AllTypes lists the 18 declared elemental types.
var AllTypes = []string{
	TypeNormal, TypeFire, TypeWater, TypeElectric, TypeGrass, TypeIce,
	TypeFighting, TypePoison, TypeGround, TypeFlying, TypePsychic, TypeBug,
	TypeRock, TypeGhost, TypeDragon, TypeDark, TypeSteel, TypeFairy,
}

// standardChart holds the non-neutral cells of the standard chart.
var standardChart = map[string]map[string]float64{
	TypeNormal: {TypeRock: 0.5, TypeGhost: 0, TypeSteel: 0.5},
	TypeFire: {
		TypeFire: 0.5, TypeWater: 0.5, TypeGrass: 2, TypeIce: 2,
		TypeBug: 2, TypeRock: 0.5, TypeDragon: 0.5, TypeSteel: 2,
	},
	TypeWater: {
		TypeFire: 2, TypeWater: 0.5, TypeGrass: 0.5, TypeGround: 2,
		TypeRock: 2, TypeDragon: 0.5,
	},
	TypeElectric: {
		TypeWater: 2, TypeElectric: 0.5, TypeGrass: 0.5, TypeGround: 0,
		TypeFlying: 2, TypeDragon: 0.5,
	},
	TypeGrass: {
		TypeFire: 0.5, TypeWater: 2, TypeGrass: 0.5, TypePoison: 0.5,
		TypeGround: 2, TypeFlying: 0.5, TypeBug: 0.5, TypeRock: 2,
		TypeDragon: 0.5, TypeSteel: 0.5,
	},
	TypeIce: {
		TypeFire: 0.5, TypeWater: 0.5, TypeGrass: 2, TypeIce: 0.5,
		TypeGround: 2, TypeFlying: 2, TypeDragon: 2, TypeSteel: 0.5,
	},
	TypeFighting: {
		TypeNormal: 2, TypeIce: 2, TypePoison: 0.5, TypeFlying: 0.5,
		TypePsychic: 0.5, TypeBug: 0.5, TypeRock: 2, TypeGhost: 0,
		TypeDark: 2, TypeSteel: 2, TypeFairy: 0.5,
	},
	TypePoison: {
		TypeGrass: 2, TypePoison: 0.5, TypeGround: 0.5, TypeRock: 0.5,
		TypeGhost: 0.5, TypeSteel: 0, TypeFairy: 2,
	},
	TypeGround: {
		TypeFire: 2, TypeElectric: 2, TypeGrass: 0.5, TypePoison: 2,
		TypeFlying: 0, TypeBug: 0.5, TypeRock: 2, TypeSteel: 2,
	},
	TypeFlying: {
		TypeElectric: 0.5, TypeGrass: 2, TypeFighting: 2, TypeBug: 2,
		TypeRock: 0.5, TypeSteel: 0.5,
	},
	TypePsychic: {
		TypeFighting: 2, TypePoison: 2, TypePsychic: 0.5, TypeDark: 0,
		TypeSteel: 0.5,
	},
	TypeBug: {
		TypeFire: 0.5, TypeGrass: 2, TypeFighting: 0.5, TypePoison: 0.5,
		TypeFlying: 0.5, TypePsychic: 2, TypeGhost: 0.5, TypeDark: 2,
		TypeSteel: 0.5, TypeFairy: 0.5,
	},
	TypeRock: {
		TypeFire: 2, TypeIce: 2, TypeFighting: 0.5, TypeGround: 0.5,
		TypeFlying: 2, TypeBug: 2, TypeSteel: 0.5,
	},
	TypeGhost:  {TypeNormal: 0, TypePsychic: 2, TypeGhost: 2, TypeDark: 0.5},
	TypeDragon: {TypeDragon: 2, TypeSteel: 0.5, TypeFairy: 0},
	TypeDark: {
		TypeFighting: 0.5, TypePsychic: 2, TypeGhost: 2, TypeDark: 0.5,
		TypeFairy: 0.5,
	},
	TypeSteel: {
		TypeFire: 0.5, TypeWater: 0.5, TypeElectric: 0.5, TypeIce: 2,
		TypeRock: 2, TypeSteel: 0.5, TypeFairy: 2,
	},
	TypeFairy: {
		TypeFire: 0.5, TypeFighting: 2, TypePoison: 0.5, TypeDragon: 2,
		TypeDark: 2, TypeSteel: 0.5,
	},
}

// StandardTypeEntries returns the full 18x18 chart, neutral cells included,
// in a stable order. It is used to seed an empty type_effectiveness table.
func StandardTypeEntries() []TypeEntry {
	out := make([]TypeEntry, 0, len(AllTypes)*len(AllTypes))
	for _, atk := range AllTypes {
		for _, def := range AllTypes {
			m := 1.0
			if v, ok := standardChart[atk][def]; ok {
				m = v
			}
			out = append(out, TypeEntry{Attack: atk, Defend: def, Multiplier: m})
		}
	}
	return out
}
