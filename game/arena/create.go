package arena

import (
	"context"

	"github.com/samber/lo"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateResult is the outcome of Create.
type CreateResult struct {
	BattleID            int64             `json:"battle_id"`
	CreatureAID         int64             `json:"creature_a_id"`
	CreatureBID         int64             `json:"creature_b_id"`
	CreatureAMoves      []battle.MoveView `json:"creature_a_moves"`
	CreatureBMoves      []battle.MoveView `json:"creature_b_moves"`
	FirstTurnCreatureID int64             `json:"first_turn_creature_id"`
	CreatureAHP         int               `json:"creature_a_hp"`
	CreatureBHP         int               `json:"creature_b_hp"`
}

type entrant struct {
	creature *model.Creature
	species  *model.Species
	kit      []battle.Slot
}

func (s *Service) loadEntrant(ctx context.Context, creatureID int64) (*entrant, error) {
	cr, err := s.catalog.Creature(ctx, creatureID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRoster(cr); err != nil {
		return nil, err
	}
	sp, err := s.catalog.Species(ctx, cr.SpeciesID)
	if err != nil {
		return nil, err
	}
	pool, err := s.learnset.Learnset(ctx, sp.ID)
	if err != nil {
		return nil, err
	}
	kit, err := battle.AssignKit(pool, s.defaultPP, s.rng)
	if err != nil {
		return nil, battle.Errorf(battle.CodeNoEligibleMoves, "creature %d has no damage-eligible moves", creatureID)
	}
	return &entrant{creature: cr, species: sp, kit: kit}, nil
}

// Create starts a battle between two creatures: both get a move kit, start
// at their species' base HP, and the faster one takes the first turn.
func (s *Service) Create(ctx context.Context, creatureAID, creatureBID int64) (*CreateResult, error) {
	if creatureAID <= 0 || creatureBID <= 0 {
		return nil, battle.NewError(battle.CodeInvalidArgument, "creature ids must be positive")
	}
	if creatureAID == creatureBID {
		return nil, battle.NewError(battle.CodeInvalidArgument, "a creature cannot battle itself")
	}

	a, err := s.loadEntrant(ctx, creatureAID)
	if err != nil {
		return nil, err
	}
	b, err := s.loadEntrant(ctx, creatureBID)
	if err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, creatureAID, creatureBID)
	if err != nil {
		return nil, err
	}
	defer release()

	pa := battle.NewParticipant(a.creature.ID, a.creature.UserID, catalog.Combatant(a.species, 0), a.kit)
	pb := battle.NewParticipant(b.creature.ID, b.creature.UserID, catalog.Combatant(b.species, 0), b.kit)
	first := pa.CreatureID
	if battle.FirstTurn(a.species.BaseSpeed, b.species.BaseSpeed, s.rng) == battle.SideB {
		first = pb.CreatureID
	}

	row := &model.Battle{
		CreatureAID:         pa.CreatureID,
		CreatureBID:         pb.CreatureID,
		Status:              model.BattleOngoing,
		CreatureAHP:         lo.ToPtr(pa.HP),
		CreatureBHP:         lo.ToPtr(pb.HP),
		FirstTurnCreatureID: lo.ToPtr(first),
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		for _, id := range []int64{pa.CreatureID, pb.CreatureID} {
			if err := s.guard.EnsureNotInBattle(ctx, tx, id); err != nil {
				return err
			}
		}
		kitMoves := lo.Map(append(append([]battle.Slot{}, pa.Kit...), pb.Kit...),
			func(sl battle.Slot, _ int) battle.MoveDef { return sl.Move })
		if err := catalog.EnsureMoves(ctx, tx, kitMoves); err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if err := s.guard.Reserve(ctx, tx, row.ID, pa.CreatureID, pb.CreatureID); err != nil {
			return err
		}
		var rows []model.BattleMove
		for _, p := range []battle.Participant{pa, pb} {
			for _, sl := range p.Kit {
				rows = append(rows, model.BattleMove{
					BattleID:   row.ID,
					CreatureID: p.CreatureID,
					MoveID:     sl.Move.ID,
					Slot:       sl.Slot,
					CurrentPP:  sl.CurrentPP,
				})
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	res := &CreateResult{
		BattleID:            row.ID,
		CreatureAID:         pa.CreatureID,
		CreatureBID:         pb.CreatureID,
		CreatureAMoves:      battle.ViewKit(pa.Kit, s.defaultPP),
		CreatureBMoves:      battle.ViewKit(pb.Kit, s.defaultPP),
		FirstTurnCreatureID: first,
		CreatureAHP:         pa.HP,
		CreatureBHP:         pb.HP,
	}
	s.logger.Info("battle created",
		zap.Int64("battle_id", row.ID),
		zap.Int64("creature_a", pa.CreatureID),
		zap.Int64("creature_b", pb.CreatureID),
		zap.Int64("first_turn", first))
	s.publish(ctx, row.ID, battle.EventBattleCreated{
		BattleID:            res.BattleID,
		CreatureAID:         res.CreatureAID,
		CreatureBID:         res.CreatureBID,
		CreatureAHP:         res.CreatureAHP,
		CreatureBHP:         res.CreatureBHP,
		FirstTurnCreatureID: res.FirstTurnCreatureID,
		CreatureAMoves:      res.CreatureAMoves,
		CreatureBMoves:      res.CreatureBMoves,
	})
	return res, nil
}
