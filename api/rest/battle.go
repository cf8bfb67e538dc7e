package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/studymon/server/audit"
	"github.com/studymon/server/game/arena"
	mw "github.com/studymon/server/middleware"
)

// BattleHandler serves the battle endpoints.
type BattleHandler struct {
	arena *arena.Service
	audit *audit.Service // nil = no audit trail
}

// NewBattleHandler creates a BattleHandler.
func NewBattleHandler(svc *arena.Service, auditSvc *audit.Service) *BattleHandler {
	return &BattleHandler{arena: svc, audit: auditSvc}
}

type createBattleRequest struct {
	CreatureAID int64 `json:"creature_a_id" binding:"required"`
	CreatureBID int64 `json:"creature_b_id" binding:"required"`
}

// Create handles POST /api/battle.
func (h *BattleHandler) Create(c *gin.Context) {
	var req createBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "creature_a_id and creature_b_id are required")
		return
	}
	start := time.Now()
	res, err := h.arena.Create(c.Request.Context(), req.CreatureAID, req.CreatureBID)

	var battleID *int64
	if res != nil {
		battleID = lo.ToPtr(res.BattleID)
	}
	h.record(c, audit.ActionBattleCreate, battleID, lo.ToPtr(req.CreatureAID), req, res, err, start)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Damage handles POST /api/battle/damage.
func (h *BattleHandler) Damage(c *gin.Context) {
	var req arena.AttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "battle_id, attacker_creature_id, defender_creature_id and move_id are required")
		return
	}
	start := time.Now()
	out, err := h.arena.Attack(c.Request.Context(), req)
	h.record(c, audit.ActionBattleAttack, lo.ToPtr(req.BattleID), lo.ToPtr(req.AttackerID), req, out, err, start)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Moves handles GET /api/battle/:id/moves?creature_id=.
func (h *BattleHandler) Moves(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	creatureID, err := strconv.ParseInt(c.Query("creature_id"), 10, 64)
	if err != nil || creatureID <= 0 {
		badRequest(c, "creature_id query parameter is required")
		return
	}
	moves, err := h.arena.Moves(c.Request.Context(), battleID, creatureID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, moves)
}

// Get handles GET /api/battle/:id.
func (h *BattleHandler) Get(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.arena.Get(c.Request.Context(), battleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *BattleHandler) record(c *gin.Context, action string, battleID, creatureID *int64, req, resp interface{}, err error, start time.Time) {
	if h.audit == nil {
		return
	}
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		BattleID:   battleID,
		CreatureID: creatureID,
		Action:     action,
		Request:    req,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if uid := mw.GetUserID(c); uid != 0 {
		entry.UserID = lo.ToPtr(uid)
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Response = resp
	}
	h.audit.Log(entry)
}

// pathID parses a positive int64 path parameter, answering 400 otherwise.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
