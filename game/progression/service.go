package progression

import (
	"context"
	"fmt"

	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatureReward describes what one creature received.
type CreatureReward struct {
	CreatureID  int64   `json:"creature_id"`
	FromSpecies int64   `json:"from_species_id"`
	ToSpecies   int64   `json:"to_species_id"`
	FromLevel   int     `json:"from_level"`
	ToLevel     int     `json:"to_level"`
	Exp         int     `json:"exp"`
	Evolutions  []int64 `json:"evolutions,omitempty"`
}

// Reward is the result of ApplyVictory.
type Reward struct {
	// Applied is false when the battle's reward had already been applied.
	Applied   bool             `json:"applied"`
	BattleID  int64            `json:"battle_id"`
	UserID    int64            `json:"user_id"`
	UserExp   int              `json:"user_exp"`
	Creatures []CreatureReward `json:"creatures,omitempty"`
}

// Service applies post-battle rewards inside the caller's transaction.
type Service struct {
	rules  Rules
	logger *zap.Logger
}

// NewService creates a progression service.
func NewService(rules Rules, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rules: rules, logger: logger}
}

// Rules returns the configured thresholds.
func (s *Service) Rules() Rules { return s.rules }

// ApplyVictory rewards winnerUserID for battleID: account experience plus
// experience for every creature the user owns, with level-ups and
// evolutions. The victory ledger row is written first, so a second call for
// the same battle is a no-op with Applied == false.
func (s *Service) ApplyVictory(ctx context.Context, tx *gorm.DB, battleID, winnerUserID int64) (*Reward, error) {
	db := tx.WithContext(ctx)
	reward := &Reward{BattleID: battleID, UserID: winnerUserID}

	if err := db.Create(&model.VictoryLedger{BattleID: battleID, UserID: winnerUserID}).Error; err != nil {
		if model.IsDuplicate(err) {
			return reward, nil
		}
		return nil, battle.Wrap(battle.CodeUnavailable, "record victory", err)
	}

	res := db.Model(&model.User{}).Where("id = ?", winnerUserID).
		Update("exp", gorm.Expr("exp + ?", s.rules.UserVictoryExp))
	if res.Error != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, "award user exp", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, battle.Errorf(battle.CodeNotFound, "user %d not found", winnerUserID)
	}
	var user model.User
	if err := db.Select("exp").First(&user, winnerUserID).Error; err != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, "reload user", err)
	}
	reward.UserExp = user.Exp

	var creatures []model.Creature
	if err := db.Where("user_id = ?", winnerUserID).Order("id").Find(&creatures).Error; err != nil {
		return nil, battle.Wrap(battle.CodeUnavailable, "load creatures", err)
	}

	cat := catalog.New(tx)
	chains := make(map[int64][]ChainMember)
	for _, cr := range creatures {
		chain, err := s.chainFor(ctx, cat, chains, cr.SpeciesID)
		if err != nil {
			return nil, err
		}
		out := s.rules.Gain(State{SpeciesID: cr.SpeciesID, Level: cr.Level, Exp: cr.Exp}, s.rules.CreatureVictoryExp, chain)

		err = db.Model(&model.Creature{}).Where("id = ?", cr.ID).Updates(map[string]interface{}{
			"level":      out.Level,
			"exp":        out.Exp,
			"species_id": out.SpeciesID,
		}).Error
		if err != nil {
			return nil, battle.Wrap(battle.CodeUnavailable, fmt.Sprintf("save creature %d", cr.ID), err)
		}
		reward.Creatures = append(reward.Creatures, CreatureReward{
			CreatureID:  cr.ID,
			FromSpecies: cr.SpeciesID,
			ToSpecies:   out.SpeciesID,
			FromLevel:   cr.Level,
			ToLevel:     out.Level,
			Exp:         out.Exp,
			Evolutions:  out.Evolutions,
		})
		if len(out.Evolutions) > 0 {
			s.logger.Info("creature evolved",
				zap.Int64("creature_id", cr.ID),
				zap.Int64("from_species", cr.SpeciesID),
				zap.Int64("to_species", out.SpeciesID),
				zap.Int("level", out.Level))
		}
	}

	reward.Applied = true
	s.logger.Info("victory rewards applied",
		zap.Int64("battle_id", battleID),
		zap.Int64("user_id", winnerUserID),
		zap.Int("user_exp", reward.UserExp),
		zap.Int("creatures", len(reward.Creatures)))
	return reward, nil
}

// chainFor returns the evolution chain of speciesID, or nil when the species
// belongs to none. Chains are memoised per call.
func (s *Service) chainFor(ctx context.Context, cat *catalog.Catalog, memo map[int64][]ChainMember, speciesID int64) ([]ChainMember, error) {
	sp, err := cat.Species(ctx, speciesID)
	if err != nil {
		if battle.CodeOf(err) == battle.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	if sp.EvolutionChainID == nil {
		return nil, nil
	}
	if chain, ok := memo[*sp.EvolutionChainID]; ok {
		return chain, nil
	}
	members, err := cat.Chain(ctx, *sp.EvolutionChainID)
	if err != nil {
		return nil, err
	}
	chain := BuildChain(members)
	memo[*sp.EvolutionChainID] = chain
	return chain, nil
}
