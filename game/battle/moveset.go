package battle

import (
	"sort"

	"github.com/samber/lo"
)

// KitSize is the number of move slots per creature per battle.
const KitSize = 4

// Slot is one assigned move with its remaining PP.
type Slot struct {
	Move      MoveDef `json:"move"`
	Slot      int     `json:"slot"`
	CurrentPP int     `json:"current_pp"`
}

// pickRule selects one random move matching its predicate.
type pickRule struct {
	name  string
	match func(MoveDef) bool
}

func powerBetween(low, high int) func(MoveDef) bool {
	return func(m MoveDef) bool {
		p := m.PowerValue()
		return p >= low && p <= high
	}
}

func ofCategory(c Category) func(MoveDef) bool {
	return func(m MoveDef) bool { return m.Category == c }
}

// kitRules run in order; a rule with no remaining candidate is skipped.
var kitRules = []pickRule{
	{name: "strong", match: powerBetween(100, 150)},
	{name: "weak", match: powerBetween(1, 40)},
	{name: "physical", match: ofCategory(CategoryPhysical)},
	{name: "special", match: ofCategory(CategorySpecial)},
}

// EligibleMoves filters pool down to damage-eligible moves, de-duplicated
// by id in first-seen order.
func EligibleMoves(pool []MoveDef) []MoveDef {
	eligible := lo.Filter(pool, func(m MoveDef, _ int) bool { return m.DamageEligible() })
	return lo.UniqBy(eligible, func(m MoveDef) int64 { return m.ID })
}

// AssignKit chooses up to four moves from pool: one strong, one weak, one
// physical and one special at random, then fills the remaining slots with
// the highest-power moves left (ties by lower id). Each slot starts with the
// move's max PP, or defaultPP when the move has none.
func AssignKit(pool []MoveDef, defaultPP int, rng Rand) ([]Slot, error) {
	eligible := EligibleMoves(pool)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleMoves
	}

	chosen := make([]MoveDef, 0, KitSize)
	taken := make(map[int64]bool, KitSize)

	for _, rule := range kitRules {
		if len(chosen) == KitSize {
			break
		}
		candidates := lo.Filter(eligible, func(m MoveDef, _ int) bool {
			return !taken[m.ID] && rule.match(m)
		})
		if len(candidates) == 0 {
			continue
		}
		pick := candidates[rng.Intn(len(candidates))]
		chosen = append(chosen, pick)
		taken[pick.ID] = true
	}

	if len(chosen) < KitSize {
		rest := lo.Filter(eligible, func(m MoveDef, _ int) bool { return !taken[m.ID] })
		sort.SliceStable(rest, func(i, j int) bool {
			pi, pj := rest[i].PowerValue(), rest[j].PowerValue()
			if pi != pj {
				return pi > pj
			}
			return rest[i].ID < rest[j].ID
		})
		for _, m := range rest {
			if len(chosen) == KitSize {
				break
			}
			chosen = append(chosen, m)
			taken[m.ID] = true
		}
	}

	kit := make([]Slot, len(chosen))
	for i, m := range chosen {
		pp := m.MaxPP(defaultPP)
		kit[i] = Slot{Move: m, Slot: i + 1, CurrentPP: pp}
	}
	return kit, nil
}
