package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/studymon/server/model"
)

func threeStage() []ChainMember {
	return []ChainMember{{SpeciesID: 1, Stage: 1}, {SpeciesID: 2, Stage: 2}, {SpeciesID: 3, Stage: 3}}
}

func TestGainLevelUpTriggersEvolution(t *testing.T) {
	r := DefaultRules()
	out := r.Gain(State{SpeciesID: 1, Level: 4, Exp: 95}, 5, threeStage())

	assert.Equal(t, 5, out.Level)
	assert.Equal(t, int64(2), out.SpeciesID)
	assert.Equal(t, 0, out.Exp)
	assert.Equal(t, []int64{2}, out.Evolutions, "level 5 is below the stage-2 threshold")
}

func TestGainMultipleLevels(t *testing.T) {
	r := DefaultRules()
	out := r.Gain(State{SpeciesID: 50, Level: 1, Exp: 10}, 250, nil)

	assert.Equal(t, 3, out.Level)
	assert.Equal(t, 2, out.LevelsGained)
	assert.Equal(t, 60, out.Exp)
	assert.Empty(t, out.Evolutions)
}

func TestGainMultiStageCatchUp(t *testing.T) {
	r := DefaultRules()
	out := r.Gain(State{SpeciesID: 1, Level: 9, Exp: 99}, 5, threeStage())

	assert.Equal(t, 10, out.Level)
	assert.Equal(t, int64(3), out.SpeciesID)
	assert.Equal(t, []int64{2, 3}, out.Evolutions)
	assert.Equal(t, 0, out.Exp)
}

func TestGainWithoutLevelUpNeverEvolves(t *testing.T) {
	r := DefaultRules()
	out := r.Gain(State{SpeciesID: 1, Level: 7, Exp: 0}, 5, threeStage())

	assert.Equal(t, int64(1), out.SpeciesID)
	assert.Equal(t, 5, out.Exp)
	assert.Equal(t, 7, out.Level)
}

func TestGainFinalStageStays(t *testing.T) {
	r := DefaultRules()
	out := r.Gain(State{SpeciesID: 3, Level: 20, Exp: 99}, 5, threeStage())

	assert.Equal(t, int64(3), out.SpeciesID)
	assert.Equal(t, 21, out.Level)
	assert.Equal(t, 4, out.Exp)
}

func TestGainSpeciesOutsideChain(t *testing.T) {
	r := DefaultRules()
	out := r.Gain(State{SpeciesID: 77, Level: 4, Exp: 95}, 5, threeStage())
	assert.Equal(t, int64(77), out.SpeciesID)
	assert.Equal(t, 5, out.Level)
}

func TestGainCustomThresholds(t *testing.T) {
	r := Rules{ExpPerLevel: 10, EvolutionLevels: map[int]int{1: 2}}
	out := r.Gain(State{SpeciesID: 1, Level: 1}, 10, threeStage())
	assert.Equal(t, 2, out.Level)
	assert.Equal(t, int64(2), out.SpeciesID, "stage 2 has no threshold, so it stops there")
	assert.Equal(t, []int64{2}, out.Evolutions)
}

func TestBuildChainInfersStage(t *testing.T) {
	two := 2
	chain := BuildChain([]model.Species{
		{ID: 30},
		{ID: 10},
		{ID: 20, EvolutionStage: &two},
	})
	// Staged species first, then stageless ones by id; stageless get index+1.
	assert.Equal(t, []ChainMember{
		{SpeciesID: 20, Stage: 2},
		{SpeciesID: 10, Stage: 2},
		{SpeciesID: 30, Stage: 3},
	}, chain)
}
