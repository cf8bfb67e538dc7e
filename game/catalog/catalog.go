package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/model"
	"gorm.io/gorm"
)

// Catalog reads reference data (species, moves, evolution chains) and the
// creature and user records the battle engine consumes.
type Catalog struct {
	db *gorm.DB
}

// New returns a catalog reading through db.
func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// WithDB returns a catalog bound to another handle, typically a transaction.
func (c *Catalog) WithDB(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// DB returns the underlying handle.
func (c *Catalog) DB() *gorm.DB { return c.db }

func (c *Catalog) first(ctx context.Context, dest interface{}, what string, id int64) error {
	err := c.db.WithContext(ctx).First(dest, id).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return battle.Errorf(battle.CodeNotFound, "%s %d not found", what, id)
	}
	return battle.Wrap(battle.CodeUnavailable, fmt.Sprintf("load %s %d", what, id), err)
}

// Species returns species id.
func (c *Catalog) Species(ctx context.Context, id int64) (*model.Species, error) {
	var sp model.Species
	if err := c.first(ctx, &sp, "species", id); err != nil {
		return nil, err
	}
	return &sp, nil
}

// Move returns move id.
func (c *Catalog) Move(ctx context.Context, id int64) (*model.Move, error) {
	var m model.Move
	if err := c.first(ctx, &m, "move", id); err != nil {
		return nil, err
	}
	return &m, nil
}

// Creature returns creature id.
func (c *Catalog) Creature(ctx context.Context, id int64) (*model.Creature, error) {
	var cr model.Creature
	if err := c.first(ctx, &cr, "creature", id); err != nil {
		return nil, err
	}
	return &cr, nil
}

// User returns user id.
func (c *Catalog) User(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := c.first(ctx, &u, "user", id); err != nil {
		return nil, err
	}
	return &u, nil
}

// Moves returns the moves with the given ids keyed by id. Missing ids are
// simply absent from the result.
func (c *Catalog) Moves(ctx context.Context, ids []int64) (map[int64]model.Move, error) {
	if len(ids) == 0 {
		return map[int64]model.Move{}, nil
	}
	var rows []model.Move
	if err := c.db.WithContext(ctx).Where("id IN ?", lo.Uniq(ids)).Find(&rows).Error; err != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, "load moves", err)
	}
	return lo.KeyBy(rows, func(m model.Move) int64 { return m.ID }), nil
}

// Chain returns the species of an evolution chain ordered by stage, with
// stage-less members after staged ones and ties broken by species id.
func (c *Catalog) Chain(ctx context.Context, chainID int64) ([]model.Species, error) {
	var members []model.Species
	if err := c.db.WithContext(ctx).Where("evolution_chain_id = ?", chainID).Find(&members).Error; err != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, fmt.Sprintf("load evolution chain %d", chainID), err)
	}
	SortChain(members)
	return members, nil
}

// SortChain orders chain members by (stage, id); a missing stage sorts last.
func SortChain(members []model.Species) {
	stage := func(s model.Species) int {
		if s.EvolutionStage == nil {
			return 9999
		}
		return *s.EvolutionStage
	}
	sort.SliceStable(members, func(i, j int) bool {
		si, sj := stage(members[i]), stage(members[j])
		if si != sj {
			return si < sj
		}
		return members[i].ID < members[j].ID
	})
}

// Combatant converts a species into the damage formula's view of one side.
func Combatant(sp *model.Species, drowsiness int) battle.Combatant {
	return battle.Combatant{
		Stats: battle.Stats{
			HP:        sp.BaseHP,
			Attack:    sp.BaseAttack,
			Defense:   sp.BaseDefense,
			SpAttack:  sp.BaseSpAttack,
			SpDefense: sp.BaseSpDefense,
			Speed:     sp.BaseSpeed,
		},
		Type1:      sp.Type1,
		Type2:      sp.Type2,
		Drowsiness: drowsiness,
	}
}

// MoveDef converts a stored move into the engine's move definition.
func MoveDef(m model.Move) battle.MoveDef {
	return battle.MoveDef{
		ID:       m.ID,
		Name:     m.Name,
		Category: battle.Category(m.DamageClass),
		Type:     m.Type,
		Power:    m.Power,
		PP:       m.PP,
		Accuracy: m.Accuracy,
	}
}

// MoveModel converts an engine move definition back into a storage row.
func MoveModel(d battle.MoveDef) model.Move {
	return model.Move{
		ID:          d.ID,
		Name:        d.Name,
		Power:       d.Power,
		PP:          d.PP,
		Accuracy:    d.Accuracy,
		Type:        d.Type,
		DamageClass: string(d.Category),
	}
}
