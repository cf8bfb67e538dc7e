package rest

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/game/arena"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/model"
	"github.com/studymon/server/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles operator endpoints. Routes should be protected by
// AdminAuth.
type AdminHandler struct {
	db     *gorm.DB
	arena  *arena.Service
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, svc *arena.Service, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{db: db, arena: svc, sched: sched, logger: logger}
}

// Metrics handles GET /api/admin/metrics.
func (h *AdminHandler) Metrics(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	var ongoing, finished, users, creatures int64
	counts := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{db.Model(&model.Battle{}).Where("status = ?", model.BattleOngoing), &ongoing},
		{db.Model(&model.Battle{}).Where("status = ?", model.BattleFinished), &finished},
		{db.Model(&model.User{}), &users},
		{db.Model(&model.Creature{}), &creatures},
	}
	for _, q := range counts {
		if err := q.q.Count(q.dst).Error; err != nil {
			writeError(c, battle.Wrap(battle.CodeUnavailable, "count rows", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ongoing_battles":  ongoing,
		"finished_battles": finished,
		"users":            users,
		"creatures":        creatures,
		"scheduler_tasks":  h.sched.Tasks(),
	})
}

// SweepBattles handles POST /api/admin/battles/sweep: it runs the idle
// battle sweep immediately.
func (h *AdminHandler) SweepBattles(c *gin.Context) {
	n, err := h.arena.SweepIdle(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("admin sweep", zap.Int("closed", n))
	c.JSON(http.StatusOK, gin.H{"closed": n})
}

// ListSchedulerTasks handles GET /api/admin/scheduler.
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// AdminAuth checks the X-Admin-Key header. With an empty key every admin
// route answers 503, so a server without a configured key exposes nothing.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": string(battle.CodeUnavailable), "message": "admin endpoints disabled: set server.admin_key"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid admin key"})
			return
		}
		c.Next()
	}
}
