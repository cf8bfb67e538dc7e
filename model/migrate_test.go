package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studymon/server/model"
	"github.com/studymon/server/testutil"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	u := &model.User{Email: "trainer@example.com", PasswordHash: "hash", Nickname: "trainer"}
	require.NoError(t, db.Create(u).Error)
	assert.Greater(t, u.ID, int64(0))

	var found model.User
	require.NoError(t, db.First(&found, u.ID).Error)
	assert.Equal(t, "trainer@example.com", found.Email)
	assert.Equal(t, 0, found.Exp)

	sp := testutil.SeedSpecies(t, db, testutil.SimpleSpecies(25, "electric", 35, 55, 90))
	cr := testutil.SeedCreature(t, db, u.ID, sp.ID)
	assert.Equal(t, 1, cr.Level)

	b := &model.Battle{CreatureAID: cr.ID, CreatureBID: cr.ID + 1, Status: model.BattleOngoing}
	require.NoError(t, db.Create(b).Error)
	require.NoError(t, db.Create(&model.BattleMove{BattleID: b.ID, CreatureID: cr.ID, MoveID: 1, Slot: 0, CurrentPP: 10}).Error)

	require.NoError(t, db.Create(&model.VictoryLedger{BattleID: b.ID, UserID: u.ID}).Error)

	al := &model.AuditLog{TraceID: "trace-001", Action: "battle.create", CreatedAt: time.Now()}
	require.NoError(t, db.Create(al).Error)
}

func TestBattleHPColumns(t *testing.T) {
	db := testutil.SetupTestDB(t)

	for _, col := range []string{"creature_a_hp", "creature_b_hp", "creature_a_id", "creature_b_id"} {
		assert.True(t, db.Migrator().HasColumn(&model.Battle{}, col), col)
	}

	b := &model.Battle{CreatureAID: 1, CreatureBID: 2, Status: model.BattleOngoing}
	require.NoError(t, db.Create(b).Error)
	require.NoError(t, db.Model(b).Updates(map[string]interface{}{"creature_a_hp": 12, "creature_b_hp": 0}).Error)

	var got model.Battle
	require.NoError(t, db.First(&got, b.ID).Error)
	require.NotNil(t, got.CreatureAHP)
	require.NotNil(t, got.CreatureBHP)
	assert.Equal(t, 12, *got.CreatureAHP)
	assert.Equal(t, 0, *got.CreatureBHP)
}

func TestIsDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)

	require.NoError(t, db.Create(&model.BattleReservation{CreatureID: 7, BattleID: 1}).Error)
	err := db.Create(&model.BattleReservation{CreatureID: 7, BattleID: 2}).Error
	require.Error(t, err)
	assert.True(t, model.IsDuplicate(err))

	err = db.Create(&model.User{Email: "x@example.com", PasswordHash: "h"}).Error
	require.NoError(t, err)
	err = db.Create(&model.User{Email: "x@example.com", PasswordHash: "h"}).Error
	assert.True(t, model.IsDuplicate(err))

	assert.False(t, model.IsDuplicate(nil))
}

func TestBattleMoveUniqueSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)

	require.NoError(t, db.Create(&model.BattleMove{BattleID: 1, CreatureID: 1, MoveID: 33, Slot: 0, CurrentPP: 10}).Error)
	err := db.Create(&model.BattleMove{BattleID: 1, CreatureID: 1, MoveID: 52, Slot: 0, CurrentPP: 10}).Error
	assert.True(t, model.IsDuplicate(err))
	err = db.Create(&model.BattleMove{BattleID: 1, CreatureID: 1, MoveID: 33, Slot: 1, CurrentPP: 10}).Error
	assert.True(t, model.IsDuplicate(err))
}
