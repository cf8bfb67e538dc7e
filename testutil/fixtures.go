package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/model"
	"gorm.io/gorm"
)

// SeedTypeChart inserts the standard 18-type chart.
func SeedTypeChart(t *testing.T, db *gorm.DB) {
	t.Helper()
	var rows []model.TypeEffectiveness
	for _, e := range battle.StandardTypeEntries() {
		rows = append(rows, model.TypeEffectiveness{AttackType: e.Attack, DefendType: e.Defend, Multiplier: e.Multiplier})
	}
	require.NoError(t, db.CreateInBatches(rows, 100).Error)
}

// SeedUser inserts a user with the given email.
func SeedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", Nickname: email}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedSpecies inserts sp as-is.
func SeedSpecies(t *testing.T, db *gorm.DB, sp *model.Species) *model.Species {
	t.Helper()
	require.NoError(t, db.Create(sp).Error)
	return sp
}

// SimpleSpecies returns a single-typed species with uniform stats.
func SimpleSpecies(id int64, typ string, hp, stat, speed int) *model.Species {
	return &model.Species{
		ID:            id,
		Name:          fmt.Sprintf("species-%d", id),
		BaseHP:        hp,
		BaseAttack:    stat,
		BaseDefense:   stat,
		BaseSpAttack:  stat,
		BaseSpDefense: stat,
		BaseSpeed:     speed,
		Type1:         typ,
	}
}

// SeedMove inserts a move. power < 0 stores a null power.
func SeedMove(t *testing.T, db *gorm.DB, id int64, category battle.Category, typ string, power, pp int) *model.Move {
	t.Helper()
	m := &model.Move{
		ID:          id,
		Name:        fmt.Sprintf("move-%d", id),
		Type:        typ,
		DamageClass: string(category),
		PP:          &pp,
	}
	if power >= 0 {
		m.Power = &power
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// SeedStandardMoves inserts a pool covering every kit rule: strong, weak,
// physical and special moves plus non-eligible noise. It returns the ids of
// the eligible moves.
func SeedStandardMoves(t *testing.T, db *gorm.DB) []int64 {
	t.Helper()
	SeedMove(t, db, 1, battle.CategoryPhysical, battle.TypeNormal, 120, 5)
	SeedMove(t, db, 2, battle.CategorySpecial, battle.TypeFire, 30, 25)
	SeedMove(t, db, 3, battle.CategoryPhysical, battle.TypeWater, 70, 15)
	SeedMove(t, db, 4, battle.CategorySpecial, battle.TypeGrass, 90, 10)
	SeedMove(t, db, 5, battle.CategoryPhysical, battle.TypeRock, 80, 10)
	SeedMove(t, db, 90, battle.CategoryStatus, battle.TypeNormal, -1, 30)
	SeedMove(t, db, 91, battle.CategoryPhysical, battle.TypeNormal, 0, 30)
	return []int64{1, 2, 3, 4, 5}
}

// SeedLearnset links moveIDs to speciesID.
func SeedLearnset(t *testing.T, db *gorm.DB, speciesID int64, moveIDs ...int64) {
	t.Helper()
	for _, id := range moveIDs {
		require.NoError(t, db.Create(&model.SpeciesMove{SpeciesID: speciesID, MoveID: id}).Error)
	}
}

// SeedCreature inserts a creature at level 1 on roster slot 1.
func SeedCreature(t *testing.T, db *gorm.DB, userID, speciesID int64) *model.Creature {
	t.Helper()
	c := &model.Creature{UserID: userID, SpeciesID: speciesID, Level: 1, RosterSlot: 1}
	require.NoError(t, db.Create(c).Error)
	return c
}
