package catalog

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LearnsetProvider lists the moves a species can learn.
type LearnsetProvider interface {
	Learnset(ctx context.Context, speciesID int64) ([]battle.MoveDef, error)
}

// DBLearnset serves learnsets from the species_moves table. A species with
// no rows falls back to every damage-eligible move in the catalog.
type DBLearnset struct {
	db *gorm.DB
}

// NewDBLearnset returns a storage-backed learnset provider.
func NewDBLearnset(db *gorm.DB) *DBLearnset {
	return &DBLearnset{db: db}
}

func (p *DBLearnset) Learnset(ctx context.Context, speciesID int64) ([]battle.MoveDef, error) {
	var rows []model.Move
	err := p.db.WithContext(ctx).
		Select("moves.*").
		Joins("JOIN species_moves ON species_moves.move_id = moves.id").
		Where("species_moves.species_id = ?", speciesID).
		Order("moves.id").
		Find(&rows).Error
	if err != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, fmt.Sprintf("load learnset of species %d", speciesID), err)
	}
	if len(rows) == 0 {
		err = p.db.WithContext(ctx).
			Where("power IS NOT NULL AND power > 0 AND damage_class <> ?", string(battle.CategoryStatus)).
			Order("id").
			Find(&rows).Error
		if err != nil {
			return nil, battle.Wrap(battle.CodeUnavailable, "load eligible moves", err)
		}
	}
	return lo.Map(rows, func(m model.Move, _ int) battle.MoveDef { return MoveDef(m) }), nil
}

// EnsureMoves upserts move definitions so that kit rows referencing them
// resolve. Existing rows are refreshed with the supplied values.
func EnsureMoves(ctx context.Context, db *gorm.DB, moves []battle.MoveDef) error {
	if len(moves) == 0 {
		return nil
	}
	rows := lo.Map(lo.UniqBy(moves, func(m battle.MoveDef) int64 { return m.ID }),
		func(m battle.MoveDef, _ int) model.Move { return MoveModel(m) })
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "power", "pp", "accuracy", "type", "damage_class"}),
	}).Create(&rows).Error
	if err != nil {
		return battle.Wrap(battle.CodeUnavailable, "store moves", err)
	}
	return nil
}
