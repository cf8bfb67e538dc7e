package arena

import (
	"context"
	"time"

	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepIdle finishes ongoing battles that have not changed for longer than
// the idle timeout. They end without a winner and without rewards. It
// returns the number of battles closed; with no timeout configured it does
// nothing.
func (s *Service) SweepIdle(ctx context.Context) (int, error) {
	if s.idleTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.idleTimeout)

	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.Battle{}).
		Where("status = ? AND updated_at < ?", model.BattleOngoing, cutoff).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return 0, battle.Wrap(battle.CodeUnavailable, "list idle battles", err)
	}

	closed := 0
	for _, id := range ids {
		ok, err := s.expire(ctx, id, cutoff)
		if err != nil {
			s.logger.Warn("expire battle failed", zap.Int64("battle_id", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		closed++
		s.logger.Info("battle expired", zap.Int64("battle_id", id))
		s.publish(ctx, id, battle.EventBattleFinished{BattleID: id, Reason: battle.ReasonIdleTimeout})
	}
	return closed, nil
}

// expire closes one battle if it is still ongoing and idle at cutoff.
func (s *Service) expire(ctx context.Context, battleID int64, cutoff time.Time) (bool, error) {
	expired := false
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := loadBattle(ctx, tx, battleID, true)
		if err != nil {
			return err
		}
		if row.Status != model.BattleOngoing || !row.UpdatedAt.Before(cutoff) {
			return nil
		}
		now := time.Now()
		upd := tx.WithContext(ctx).Model(&model.Battle{}).
			Where("id = ? AND status = ? AND version = ?", row.ID, model.BattleOngoing, row.Version).
			Updates(map[string]interface{}{
				"status":      model.BattleFinished,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  now,
				"finished_at": now,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return nil
		}
		if err := s.guard.Release(ctx, tx, row.ID); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}
