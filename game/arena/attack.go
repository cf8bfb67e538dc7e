package arena

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/progression"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttackRequest names the battle, the two sides and the move used.
type AttackRequest struct {
	BattleID   int64 `json:"battle_id" binding:"required"`
	AttackerID int64 `json:"attacker_creature_id" binding:"required"`
	DefenderID int64 `json:"defender_creature_id" binding:"required"`
	MoveID     int64 `json:"move_id" binding:"required"`
}

// checkRosters rejects attacks in an ongoing battle once either creature has
// left its owner's active roster.
func (s *Service) checkRosters(ctx context.Context, tx *gorm.DB, row *model.Battle) error {
	if !s.requireRoster || row.Status != model.BattleOngoing {
		return nil
	}
	cat := s.catalog.WithDB(tx)
	for _, id := range []int64{row.CreatureAID, row.CreatureBID} {
		cr, err := cat.Creature(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ensureRoster(cr); err != nil {
			return err
		}
	}
	return nil
}

// AttackOutcome is the committed result of one attack.
type AttackOutcome struct {
	BattleID         int64               `json:"battle_id"`
	AttackerID       int64               `json:"attacker_creature_id"`
	DefenderID       int64               `json:"defender_creature_id"`
	MoveID           int64               `json:"move_id"`
	Damage           int                 `json:"damage"`
	STAB             float64             `json:"stab"`
	Effectiveness    float64             `json:"effectiveness"`
	RemainingPP      int                 `json:"remaining_pp"`
	DefenderHP       int                 `json:"defender_current_hp"`
	CreatureAHP      int                 `json:"creature_a_hp"`
	CreatureBHP      int                 `json:"creature_b_hp"`
	Status           string              `json:"status"`
	Finished         bool                `json:"finished"`
	WinnerCreatureID *int64              `json:"winner_creature_id,omitempty"`
	WinnerUserID     *int64              `json:"winner_user_id,omitempty"`
	Reward           *progression.Reward `json:"reward,omitempty"`
}

// Attack resolves one move inside a transaction. The battle row is locked,
// the session is rebuilt from storage, and HP, PP and status are committed
// together with a version check. A battle finished by a concurrent request
// yields BATTLE_NOT_ONGOING.
func (s *Service) Attack(ctx context.Context, req AttackRequest) (*AttackOutcome, error) {
	if req.BattleID <= 0 || req.AttackerID <= 0 || req.DefenderID <= 0 || req.MoveID <= 0 {
		return nil, battle.NewError(battle.CodeInvalidArgument, "battle, attacker, defender and move ids are required")
	}

	var out *AttackOutcome
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := loadBattle(ctx, tx, req.BattleID, true)
		if err != nil {
			return err
		}
		rs, err := s.restore(ctx, tx, row)
		if err != nil {
			return err
		}
		if err := s.checkRosters(ctx, tx, row); err != nil {
			return err
		}
		res, err := rs.session.Attack(ctx, req.AttackerID, req.DefenderID, req.MoveID, s.rng)
		if err != nil {
			return err
		}
		if err := s.persistAttack(ctx, tx, rs, res); err != nil {
			return err
		}

		out = &AttackOutcome{
			BattleID:      row.ID,
			AttackerID:    res.AttackerID,
			DefenderID:    res.DefenderID,
			MoveID:        res.MoveID,
			Damage:        res.Damage.Damage,
			STAB:          res.Damage.STAB,
			Effectiveness: res.Damage.Effectiveness,
			RemainingPP:   res.RemainingPP,
			DefenderHP:    res.DefenderHP,
			CreatureAHP:   res.HPA,
			CreatureBHP:   res.HPB,
			Status:        string(rs.session.Status()),
		}
		if !res.Finished {
			return nil
		}
		out.Finished = true
		out.WinnerCreatureID = lo.ToPtr(res.WinnerCreatureID)
		out.WinnerUserID = lo.ToPtr(res.WinnerUserID)
		if err := s.guard.Release(ctx, tx, row.ID); err != nil {
			return err
		}
		reward, err := s.progression.ApplyVictory(ctx, tx, row.ID, res.WinnerUserID)
		if err != nil {
			return err
		}
		out.Reward = reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attack resolved",
		zap.Int64("battle_id", out.BattleID),
		zap.Int64("attacker", out.AttackerID),
		zap.Int64("defender", out.DefenderID),
		zap.Int64("move_id", out.MoveID),
		zap.Int("damage", out.Damage),
		zap.String("status", out.Status))
	s.publish(ctx, out.BattleID, battle.EventAttackResolved{
		BattleID:      out.BattleID,
		AttackerID:    out.AttackerID,
		DefenderID:    out.DefenderID,
		MoveID:        out.MoveID,
		Damage:        out.Damage,
		STAB:          out.STAB,
		Effectiveness: out.Effectiveness,
		RemainingPP:   out.RemainingPP,
		CreatureAHP:   out.CreatureAHP,
		CreatureBHP:   out.CreatureBHP,
	})
	if out.WinnerCreatureID != nil {
		s.publish(ctx, out.BattleID, battle.EventBattleFinished{
			BattleID:         out.BattleID,
			WinnerCreatureID: out.WinnerCreatureID,
			WinnerUserID:     out.WinnerUserID,
			Reason:           battle.ReasonKnockout,
		})
	}
	return out, nil
}

func (s *Service) persistAttack(ctx context.Context, tx *gorm.DB, rs *restoredSession, res battle.AttackResult) error {
	db := tx.WithContext(ctx)
	now := time.Now()
	updates := map[string]interface{}{
		"creature_a_hp": res.HPA,
		"creature_b_hp": res.HPB,
		"version":       gorm.Expr("version + 1"),
		"updated_at":    now,
	}
	if res.Finished {
		updates["status"] = model.BattleFinished
		updates["winner_creature_id"] = res.WinnerCreatureID
		updates["winner_user_id"] = res.WinnerUserID
		updates["finished_at"] = now
	}
	upd := db.Model(&model.Battle{}).
		Where("id = ? AND status = ? AND version = ?", rs.row.ID, model.BattleOngoing, rs.row.Version).
		Updates(updates)
	if upd.Error != nil {
		return battle.Wrap(battle.CodeUnavailable, "update battle", upd.Error)
	}
	if upd.RowsAffected == 0 {
		return battle.Errorf(battle.CodeBattleNotOngoing, "battle %d changed concurrently", rs.row.ID)
	}

	moveRowID, ok := rs.moveRow[res.AttackerID][res.MoveID]
	if !ok {
		return battle.Errorf(battle.CodeInternal, "no kit row for move %d", res.MoveID)
	}
	err := db.Model(&model.BattleMove{}).Where("id = ?", moveRowID).
		Update("current_pp", res.RemainingPP).Error
	if err != nil {
		return battle.Wrap(battle.CodeUnavailable, "update move pp", err)
	}
	return nil
}
