package matchmaking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Guard keeps every creature in at most one ongoing battle. Creation is
// serialised per creature by a short-lived cache lock, and the
// battle_reservations table rejects any double booking that slips past it.
type Guard struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewGuard creates a guard. ttl bounds how long a crashed creator can hold
// a creature's lock.
func NewGuard(c cache.Cache, ttl time.Duration, logger *zap.Logger) *Guard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{cache: c, ttl: ttl, logger: logger}
}

func lockKey(creatureID int64) string {
	return fmt.Sprintf("lock:battle:creature:%d", creatureID)
}

// Acquire takes the creation lock of every creature, in ascending id order.
// If any lock is held elsewhere the ones already taken are released and
// ALREADY_IN_BATTLE is returned. The returned func releases all locks.
func (g *Guard) Acquire(ctx context.Context, creatureIDs ...int64) (func(), error) {
	ids := lo.Uniq(creatureIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	token := uuid.NewString()
	held := make([]string, 0, len(ids))
	release := func() {
		// Release must not be cut short by the request's context.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, key := range held {
			if _, err := g.cache.DelIfValue(rctx, key, token); err != nil {
				g.logger.Warn("release creature lock failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	for _, id := range ids {
		key := lockKey(id)
		ok, err := g.cache.SetNX(ctx, key, token, g.ttl)
		if err != nil {
			release()
			return nil, battle.Wrap(battle.CodeUnavailable, "acquire creature lock", err)
		}
		if !ok {
			release()
			return nil, battle.Errorf(battle.CodeAlreadyInBattle, "creature %d is joining another battle", id)
		}
		held = append(held, key)
	}
	return release, nil
}

// EnsureNotInBattle fails with ALREADY_IN_BATTLE when the creature is a side
// of any ongoing battle.
func (g *Guard) EnsureNotInBattle(ctx context.Context, tx *gorm.DB, creatureID int64) error {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Battle{}).
		Where("status = ?", model.BattleOngoing).
		Where("creature_a_id = ? OR creature_b_id = ?", creatureID, creatureID).
		Count(&n).Error
	if err != nil {
		return battle.Wrap(battle.CodeUnavailable, "check ongoing battles", err)
	}
	if n > 0 {
		return battle.Errorf(battle.CodeAlreadyInBattle, "creature %d is already in an ongoing battle", creatureID)
	}
	return nil
}

// Reserve books the creatures for battleID. A creature that is already
// booked makes the whole reservation fail with ALREADY_IN_BATTLE.
func (g *Guard) Reserve(ctx context.Context, tx *gorm.DB, battleID int64, creatureIDs ...int64) error {
	for _, id := range creatureIDs {
		err := tx.WithContext(ctx).Create(&model.BattleReservation{CreatureID: id, BattleID: battleID}).Error
		if err == nil {
			continue
		}
		if model.IsDuplicate(err) {
			return battle.Errorf(battle.CodeAlreadyInBattle, "creature %d is already in an ongoing battle", id)
		}
		return battle.Wrap(battle.CodeUnavailable, "reserve creature", err)
	}
	return nil
}

// Release frees every creature booked for battleID.
func (g *Guard) Release(ctx context.Context, tx *gorm.DB, battleID int64) error {
	err := tx.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&model.BattleReservation{}).Error
	if err != nil {
		return battle.Wrap(battle.CodeUnavailable, "release reservations", err)
	}
	return nil
}
