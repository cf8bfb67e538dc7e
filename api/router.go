package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apirest "github.com/studymon/server/api/rest"
	"github.com/studymon/server/api/sse"
	"github.com/studymon/server/audit"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
	"github.com/studymon/server/game/arena"
	mw "github.com/studymon/server/middleware"
	"github.com/studymon/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Cache     cache.Cache
	PubSub    cache.PubSub
	Arena     *arena.Service
	Audit     *audit.Service
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	cfg := d.Config

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(d.Logger), mw.Recovery(d.Logger))

	// One bucket store for every route. It runs after auth where auth is
	// required so that callers are keyed by user rather than by IP.
	limit := mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(d.DB, d.Cache, cfg.Security, d.Logger)
	battleH := apirest.NewBattleHandler(d.Arena, d.Audit)
	creatureH := apirest.NewCreatureHandler(d.DB)
	adminH := apirest.NewAdminHandler(d.DB, d.Arena, d.Scheduler, d.Logger)
	auth := mw.Auth(cfg.Security, d.Cache)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/signup", limit, authH.Signup)
		authG.POST("/login", limit, authH.Login)
		authG.POST("/logout", auth, limit, authH.Logout)

		battleG := api.Group("/battle", auth, limit)
		battleG.POST("", battleH.Create)
		battleG.POST("/damage", battleH.Damage)
		battleG.GET("/:id", battleH.Get)
		battleG.GET("/:id/moves", battleH.Moves)

		api.GET("/creatures/:id", auth, limit, creatureH.Get)

		adminG := api.Group("/admin", limit)
		if len(cfg.Server.AdminIPs) > 0 {
			adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs))
		}
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/battles/sweep", adminH.SweepBattles)
	}

	sseH := sse.NewHandler(d.PubSub, d.Cache, d.Arena, cfg.Security, d.Logger)
	r.GET("/sse/battles/:id", limit, sseH.ServeBattle)

	return r
}
