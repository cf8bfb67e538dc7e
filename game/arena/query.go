package arena

import (
	"context"
	"time"

	"github.com/studymon/server/game/battle"
	"gorm.io/gorm"
)

// View is a battle with both kits, as returned by Get.
type View struct {
	ID                  int64             `json:"battle_id"`
	Status              string            `json:"status"`
	CreatureAID         int64             `json:"creature_a_id"`
	CreatureBID         int64             `json:"creature_b_id"`
	CreatureAHP         int               `json:"creature_a_hp"`
	CreatureBHP         int               `json:"creature_b_hp"`
	FirstTurnCreatureID int64             `json:"first_turn_creature_id"`
	WinnerCreatureID    *int64            `json:"winner_creature_id,omitempty"`
	WinnerUserID        *int64            `json:"winner_user_id,omitempty"`
	CreatureAMoves      []battle.MoveView `json:"creature_a_moves"`
	CreatureBMoves      []battle.MoveView `json:"creature_b_moves"`
	CreatedAt           time.Time         `json:"created_at"`
	FinishedAt          *time.Time        `json:"finished_at,omitempty"`
}

// Moves returns the kit assigned to creatureID in battleID with its current
// PP. It works on finished battles too.
func (s *Service) Moves(ctx context.Context, battleID, creatureID int64) ([]battle.MoveView, error) {
	var out []battle.MoveView
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := loadBattle(ctx, tx, battleID, false)
		if err != nil {
			return err
		}
		rs, err := s.restore(ctx, tx, row)
		if err != nil {
			return err
		}
		kit, err := rs.session.Moves(creatureID)
		if err != nil {
			return err
		}
		out = battle.ViewKit(kit, s.defaultPP)
		return nil
	})
	return out, err
}

// Get returns the current state of a battle.
func (s *Service) Get(ctx context.Context, battleID int64) (*View, error) {
	var out *View
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := loadBattle(ctx, tx, battleID, false)
		if err != nil {
			return err
		}
		rs, err := s.restore(ctx, tx, row)
		if err != nil {
			return err
		}
		sess := rs.session
		out = &View{
			ID:                  row.ID,
			Status:              row.Status,
			CreatureAID:         row.CreatureAID,
			CreatureBID:         row.CreatureBID,
			CreatureAHP:         sess.A.HP,
			CreatureBHP:         sess.B.HP,
			FirstTurnCreatureID: sess.FirstTurnCreatureID,
			WinnerCreatureID:    row.WinnerCreatureID,
			WinnerUserID:        row.WinnerUserID,
			CreatureAMoves:      battle.ViewKit(sess.A.Kit, s.defaultPP),
			CreatureBMoves:      battle.ViewKit(sess.B.Kit, s.defaultPP),
			CreatedAt:           row.CreatedAt,
			FinishedAt:          row.FinishedAt,
		}
		return nil
	})
	return out, err
}
