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

// SeedTypeChart fills an empty type_effectiveness table with the standard
// chart. A non-empty table is left untouched. It returns the rows inserted.
func SeedTypeChart(ctx context.Context, db *gorm.DB) (int, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&model.TypeEffectiveness{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("catalog: count type chart: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	rows := lo.Map(battle.StandardTypeEntries(), func(e battle.TypeEntry, _ int) model.TypeEffectiveness {
		return model.TypeEffectiveness{AttackType: e.Attack, DefendType: e.Defend, Multiplier: e.Multiplier}
	})
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 100).Error
	if err != nil {
		return 0, fmt.Errorf("catalog: seed type chart: %w", err)
	}
	return len(rows), nil
}

// LoadTypeChart builds the immutable chart from storage.
func LoadTypeChart(ctx context.Context, db *gorm.DB) (*battle.TypeChart, error) {
	var rows []model.TypeEffectiveness
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog: load type chart: %w", err)
	}
	entries := lo.Map(rows, func(r model.TypeEffectiveness, _ int) battle.TypeEntry {
		return battle.TypeEntry{Attack: r.AttackType, Defend: r.DefendType, Multiplier: r.Multiplier}
	})
	return battle.NewTypeChart(entries)
}
