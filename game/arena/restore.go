package arena

import (
	"context"
	"errors"

	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loadBattle reads the battle row. With forUpdate the row is locked for the
// rest of the transaction where the driver supports it.
func loadBattle(ctx context.Context, tx *gorm.DB, battleID int64, forUpdate bool) (*model.Battle, error) {
	q := tx.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row model.Battle
	if err := q.First(&row, battleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, battle.Errorf(battle.CodeNotFound, "battle %d not found", battleID)
		}
		return nil, battle.Wrap(battle.CodeUnavailable, "load battle", err)
	}
	return &row, nil
}

// loadKits returns the assigned slots per creature, ordered by slot.
func loadKits(ctx context.Context, cat *catalog.Catalog, tx *gorm.DB, battleID int64) (map[int64][]battle.Slot, map[int64]map[int64]int64, error) {
	var rows []model.BattleMove
	err := tx.WithContext(ctx).Where("battle_id = ?", battleID).
		Order("creature_id, slot").Find(&rows).Error
	if err != nil {
		return nil, nil, battle.Wrap(battle.CodeUnavailable, "load battle moves", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.MoveID)
	}
	moves, err := cat.Moves(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	kits := make(map[int64][]battle.Slot)
	// rowIDs maps creature -> move -> battle_moves.id
	rowIDs := make(map[int64]map[int64]int64)
	for _, r := range rows {
		m, ok := moves[r.MoveID]
		if !ok {
			return nil, nil, battle.Errorf(battle.CodeInternal, "move %d of battle %d is missing", r.MoveID, battleID)
		}
		kits[r.CreatureID] = append(kits[r.CreatureID], battle.Slot{
			Move:      catalog.MoveDef(m),
			Slot:      r.Slot,
			CurrentPP: r.CurrentPP,
		})
		if rowIDs[r.CreatureID] == nil {
			rowIDs[r.CreatureID] = make(map[int64]int64)
		}
		rowIDs[r.CreatureID][r.MoveID] = r.ID
	}
	return kits, rowIDs, nil
}

// restoredSession is a Session plus the row bookkeeping needed to persist it.
type restoredSession struct {
	row     *model.Battle
	session *battle.Session
	moveRow map[int64]map[int64]int64
}

func (s *Service) restore(ctx context.Context, tx *gorm.DB, row *model.Battle) (*restoredSession, error) {
	cat := s.catalog.WithDB(tx)
	kits, moveRow, err := loadKits(ctx, cat, tx, row.ID)
	if err != nil {
		return nil, err
	}

	side := func(creatureID int64, hp *int) (battle.Participant, error) {
		cr, err := cat.Creature(ctx, creatureID)
		if err != nil {
			return battle.Participant{}, err
		}
		sp, err := cat.Species(ctx, cr.SpeciesID)
		if err != nil {
			return battle.Participant{}, err
		}
		drowsiness := 0
		if u, err := cat.User(ctx, cr.UserID); err == nil {
			drowsiness = u.DrowsinessCount
		} else if battle.CodeOf(err) != battle.CodeNotFound {
			return battle.Participant{}, err
		}
		p := battle.NewParticipant(cr.ID, cr.UserID, catalog.Combatant(sp, drowsiness), kits[cr.ID])
		if hp != nil {
			p.HP = *hp
		}
		return p, nil
	}

	a, err := side(row.CreatureAID, row.CreatureAHP)
	if err != nil {
		return nil, err
	}
	b, err := side(row.CreatureBID, row.CreatureBHP)
	if err != nil {
		return nil, err
	}

	var first int64
	if row.FirstTurnCreatureID != nil {
		first = *row.FirstTurnCreatureID
	}
	sess := battle.NewSession(row.ID, a, b, first, battle.Status(row.Status), s.calc)
	if row.WinnerCreatureID != nil {
		sess.WinnerCreatureID = *row.WinnerCreatureID
	}
	if row.WinnerUserID != nil {
		sess.WinnerUserID = *row.WinnerUserID
	}
	return &restoredSession{row: row, session: sess, moveRow: moveRow}, nil
}
