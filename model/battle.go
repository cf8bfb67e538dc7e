package model

import "time"

const (
	BattleOngoing  = "ongoing"
	BattleFinished = "finished"
)

// Battle is one persisted battle session. Nil HP means "use base HP".
type Battle struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatureAID         int64      `gorm:"index:idx_battle_a;not null" json:"creature_a_id"`
	CreatureBID         int64      `gorm:"index:idx_battle_b;not null" json:"creature_b_id"`
	Status              string     `gorm:"index:idx_battle_status;size:16;not null" json:"status"`
	CreatureAHP         *int       `gorm:"column:creature_a_hp" json:"creature_a_hp"`
	CreatureBHP         *int       `gorm:"column:creature_b_hp" json:"creature_b_hp"`
	FirstTurnCreatureID *int64     `json:"first_turn_creature_id"`
	WinnerCreatureID    *int64     `json:"winner_creature_id"`
	WinnerUserID        *int64     `json:"winner_user_id"`
	Version             int        `gorm:"default:0;not null" json:"version"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"index:idx_battle_updated;autoUpdateTime" json:"updated_at"`
	FinishedAt          *time.Time `json:"finished_at"`
}

// BattleMove is one assigned kit slot with its remaining PP.
type BattleMove struct {
	ID         int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	BattleID   int64 `gorm:"uniqueIndex:uq_bm_slot,priority:1;uniqueIndex:uq_bm_move,priority:1;not null" json:"battle_id"`
	CreatureID int64 `gorm:"uniqueIndex:uq_bm_slot,priority:2;uniqueIndex:uq_bm_move,priority:2;not null" json:"creature_id"`
	MoveID     int64 `gorm:"uniqueIndex:uq_bm_move,priority:3;not null" json:"move_id"`
	Slot       int   `gorm:"uniqueIndex:uq_bm_slot,priority:3;not null" json:"slot"`
	CurrentPP  int   `gorm:"not null" json:"current_pp"`
}

// BattleReservation holds a creature while it is in an ongoing battle. The
// primary key makes double booking a unique violation.
type BattleReservation struct {
	CreatureID int64     `gorm:"primaryKey;autoIncrement:false" json:"creature_id"`
	BattleID   int64     `gorm:"index:idx_reservation_battle;not null" json:"battle_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// VictoryLedger records that a battle's reward has been applied.
type VictoryLedger struct {
	BattleID  int64     `gorm:"primaryKey;autoIncrement:false" json:"battle_id"`
	UserID    int64     `gorm:"not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (VictoryLedger) TableName() string { return "victory_ledger" }
