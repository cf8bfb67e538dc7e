package progression

import (
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/model"
)

// Rules are the experience and evolution thresholds.
type Rules struct {
	ExpPerLevel        int
	UserVictoryExp     int
	CreatureVictoryExp int
	// EvolutionLevels maps a stage to the level required to evolve out of
	// it. Stages without an entry never evolve.
	EvolutionLevels map[int]int
}

// DefaultRules: 100 exp per level, +1 account exp and +5 creature exp per
// victory, stage 1 evolves at level 5 and stage 2 at level 10.
func DefaultRules() Rules {
	return Rules{
		ExpPerLevel:        100,
		UserVictoryExp:     1,
		CreatureVictoryExp: 5,
		EvolutionLevels:    map[int]int{1: 5, 2: 10},
	}
}

// ChainMember is one species of an evolution chain with its resolved stage.
type ChainMember struct {
	SpeciesID int64
	Stage     int
}

// BuildChain orders chain species and resolves missing stages from their
// position (index + 1).
func BuildChain(members []model.Species) []ChainMember {
	sorted := make([]model.Species, len(members))
	copy(sorted, members)
	catalog.SortChain(sorted)
	out := make([]ChainMember, len(sorted))
	for i, sp := range sorted {
		stage := i + 1
		if sp.EvolutionStage != nil {
			stage = *sp.EvolutionStage
		}
		out[i] = ChainMember{SpeciesID: sp.ID, Stage: stage}
	}
	return out
}

// State is a creature's progression state.
type State struct {
	SpeciesID int64
	Level     int
	Exp       int
}

// Outcome is the result of one Gain.
type Outcome struct {
	State
	LevelsGained int
	// Evolutions lists every species the creature evolved into, in order.
	Evolutions []int64
}

// Gain adds amount experience, levels up while the threshold is met and,
// after any level increase, evolves along chain until the level no longer
// satisfies the current stage's requirement. Evolution resets experience to
// zero and keeps the level. The evolution loop runs at most len(chain) times.
func (r Rules) Gain(s State, amount int, chain []ChainMember) Outcome {
	out := Outcome{State: s}
	if out.Level < 1 {
		out.Level = 1
	}
	if amount > 0 {
		out.Exp += amount
	}
	if out.Exp < 0 {
		out.Exp = 0
	}
	if r.ExpPerLevel > 0 {
		for out.Exp >= r.ExpPerLevel {
			out.Exp -= r.ExpPerLevel
			out.Level++
			out.LevelsGained++
		}
	}
	if out.LevelsGained == 0 {
		return out
	}

	for range chain {
		idx := -1
		for i, m := range chain {
			if m.SpeciesID == out.SpeciesID {
				idx = i
				break
			}
		}
		if idx < 0 || idx+1 >= len(chain) {
			break
		}
		required, ok := r.EvolutionLevels[chain[idx].Stage]
		if !ok || out.Level < required {
			break
		}
		out.SpeciesID = chain[idx+1].SpeciesID
		out.Exp = 0
		out.Evolutions = append(out.Evolutions, out.SpeciesID)
	}
	return out
}
