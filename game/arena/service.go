package arena

import (
	"context"
	"time"

	"github.com/studymon/server/cache"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/game/matchmaking"
	"github.com/studymon/server/game/progression"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config wires an arena Service.
type Config struct {
	DB          *gorm.DB
	Learnset    catalog.LearnsetProvider // nil = catalog.DBLearnset over DB
	Guard       *matchmaking.Guard
	Progression *progression.Service
	Calculator  *battle.Calculator
	PubSub      cache.PubSub // nil = events are not published
	RNG         battle.Rand  // injectable for testing
	Logger      *zap.Logger

	DefaultPP     int           // 0 = 10
	IdleTimeout   time.Duration // 0 = battles never expire
	RequireRoster bool          // only creatures in roster slots 1-6 may battle
}

// Service runs battles against persistent storage. Every operation is a
// short transaction; concurrent attacks on one battle are serialised by a
// row lock and a version check on the battle row.
type Service struct {
	db            *gorm.DB
	catalog       *catalog.Catalog
	learnset      catalog.LearnsetProvider
	guard         *matchmaking.Guard
	progression   *progression.Service
	calc          *battle.Calculator
	pubsub        cache.PubSub
	rng           battle.Rand
	logger        *zap.Logger
	defaultPP     int
	idleTimeout   time.Duration
	requireRoster bool
}

// NewService creates the arena service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RNG == nil {
		cfg.RNG = battle.NewRand(battle.NewSeed())
	}
	if cfg.Learnset == nil {
		cfg.Learnset = catalog.NewDBLearnset(cfg.DB)
	}
	if cfg.Progression == nil {
		cfg.Progression = progression.NewService(progression.DefaultRules(), cfg.Logger)
	}
	if cfg.Calculator == nil {
		cfg.Calculator = battle.NewCalculator(nil, battle.DefaultDamageConfig())
	}
	if cfg.DefaultPP <= 0 {
		cfg.DefaultPP = 10
	}
	return &Service{
		db:            cfg.DB,
		catalog:       catalog.New(cfg.DB),
		learnset:      cfg.Learnset,
		guard:         cfg.Guard,
		progression:   cfg.Progression,
		calc:          cfg.Calculator,
		pubsub:        cfg.PubSub,
		rng:           cfg.RNG,
		logger:        cfg.Logger,
		defaultPP:     cfg.DefaultPP,
		idleTimeout:   cfg.IdleTimeout,
		requireRoster: cfg.RequireRoster,
	}
}

func (s *Service) ensureRoster(cr *model.Creature) error {
	if !s.requireRoster || cr.OnRoster() {
		return nil
	}
	return battle.Errorf(battle.CodeInvalidArgument, "creature %d is not on its owner's active roster", cr.ID)
}

// transaction runs fn in a DB transaction, mapping storage failures that
// are not already domain errors to UNAVAILABLE.
func (s *Service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if battle.CodeOf(err) == battle.CodeInternal {
		return battle.Wrap(battle.CodeUnavailable, "storage", err)
	}
	return err
}
