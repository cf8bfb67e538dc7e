package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/api"
	"github.com/studymon/server/audit"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
	dbadapter "github.com/studymon/server/db"
	"github.com/studymon/server/game/arena"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/game/matchmaking"
	"github.com/studymon/server/game/progression"
	"github.com/studymon/server/model"
	"github.com/studymon/server/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; battle routes are unauthenticated")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	ctx := context.Background()
	if n, err := catalog.SeedTypeChart(ctx, db); err != nil {
		log.Fatalf("seed type chart: %v", err)
	} else if n > 0 {
		logger.Info("type chart seeded", zap.Int("rows", n))
	}
	chart, err := catalog.LoadTypeChart(ctx, db)
	if err != nil {
		log.Fatalf("type chart: %v", err)
	}
	logger.Info("DB initialized", zap.Int("type_chart_entries", chart.Len()))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		auditSvc.Stop(sctx)
	}()

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Battle engine ----
	var learnset catalog.LearnsetProvider
	switch cfg.Learnset.Provider {
	case "pokeapi":
		learnset = catalog.NewPokeAPILearnset(catalog.PokeAPIConfig{
			BaseURL:       cfg.Learnset.PokeAPIBaseURL,
			Timeout:       cfg.Learnset.Timeout,
			MaxEntries:    cfg.Learnset.MaxEntries,
			MaxCandidates: cfg.Learnset.MaxCandidates,
			DefaultPP:     cfg.Battle.DefaultPP,
			CacheTTL:      cfg.Learnset.CacheTTL,
		}, c, logger)
		logger.Info("learnsets served by PokeAPI", zap.String("base_url", cfg.Learnset.PokeAPIBaseURL))
	default:
		learnset = catalog.NewDBLearnset(db)
	}

	calc := battle.NewCalculator(chart, battle.DamageConfig{
		Level:       cfg.Battle.Level,
		VarianceMin: cfg.Battle.VarianceMin,
		VarianceMax: cfg.Battle.VarianceMax,
		STAB:        cfg.Battle.STAB,
		PenaltyStep: cfg.Battle.DrowsinessPenaltyStep,
		PenaltyMax:  cfg.Battle.DrowsinessPenaltyMax,
	})
	progSvc := progression.NewService(progression.Rules{
		ExpPerLevel:        cfg.Progression.ExpPerLevel,
		UserVictoryExp:     cfg.Progression.UserVictoryExp,
		CreatureVictoryExp: cfg.Progression.CreatureVictoryExp,
		EvolutionLevels:    cfg.Progression.EvolutionLevels,
	}, logger)

	arenaSvc := arena.NewService(arena.Config{
		DB:            db,
		Learnset:      learnset,
		Guard:         matchmaking.NewGuard(c, cfg.Battle.LockTTL, logger),
		Progression:   progSvc,
		Calculator:    calc,
		PubSub:        pubsub,
		Logger:        logger,
		DefaultPP:     cfg.Battle.DefaultPP,
		IdleTimeout:   cfg.Battle.IdleTimeout,
		RequireRoster: cfg.Battle.RequireRoster,
	})

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	if cfg.Battle.IdleTimeout > 0 {
		sched.AddTicker("battle_idle_sweep", cfg.Battle.SweepInterval, func(ctx context.Context) error {
			n, err := arenaSvc.SweepIdle(ctx)
			if n > 0 {
				logger.Info("idle battles expired", zap.Int("count", n))
			}
			return err
		})
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		PubSub:    pubsub,
		Arena:     arenaSvc,
		Audit:     auditSvc,
		Scheduler: sched,
		Logger:    logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
