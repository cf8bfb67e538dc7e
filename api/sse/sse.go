package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
	"github.com/studymon/server/game/arena"
	"github.com/studymon/server/game/battle"
	mw "github.com/studymon/server/middleware"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
)

const defaultKeepalive = 30 * time.Second

// Handler relays a battle's event channel as server-sent events.
type Handler struct {
	pubsub    cache.PubSub
	c         cache.Cache
	arena     *arena.Service
	sec       config.SecurityConfig
	keepalive time.Duration
	encode    func(any) ([]byte, error)
	logger    *zap.Logger
}

// NewHandler creates an SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, svc *arena.Service, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, c: c, arena: svc, sec: sec, keepalive: defaultKeepalive, encode: json.Marshal, logger: logger}
}

// SetKeepalive changes the keepalive comment interval.
func (h *Handler) SetKeepalive(d time.Duration) {
	if d > 0 {
		h.keepalive = d
	}
}

func writeEvent(c *gin.Context, name string, data []byte) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data)
	c.Writer.Flush()
}

// ServeBattle handles GET /sse/battles/:id?token=<jwt>. It first sends a
// "snapshot" event with the battle state, then one event per published
// battle event, named after its type. The stream ends after
// battle_finished or when the client goes away.
func (h *Handler) ServeBattle(c *gin.Context) {
	battleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || battleID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": string(battle.CodeInvalidArgument), "message": "invalid id"})
		return
	}
	if h.sec.JWTSecret != "" {
		token := c.Query("token")
		if token == "" {
			token = mw.BearerToken(c)
		}
		if _, ok := mw.Authenticate(c.Request.Context(), h.sec, h.c, token); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid or expired token"})
			return
		}
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	// Subscribe before the snapshot so no event falls between the two.
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, battle.Channel(battleID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Int64("battle_id", battleID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": string(battle.CodeUnavailable), "message": "subscribe failed"})
		return
	}
	defer unsub()

	view, err := h.arena.Get(c.Request.Context(), battleID)
	if err != nil {
		status := http.StatusInternalServerError
		switch battle.CodeOf(err) {
		case battle.CodeNotFound:
			status = http.StatusNotFound
		case battle.CodeUnavailable:
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": string(battle.CodeOf(err)), "message": "battle unavailable"})
		return
	}

	snapshot, err := h.encode(view)
	if err != nil {
		h.logger.Error("sse snapshot encode failed", zap.Int64("battle_id", battleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": string(battle.CodeInternal), "message": "snapshot unavailable"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeEvent(c, "snapshot", snapshot)
	if view.Status == model.BattleFinished {
		return
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
				h.logger.Warn("sse dropped malformed event", zap.Int64("battle_id", battleID))
				continue
			}
			writeEvent(c, env.Type, []byte(msg.Payload))
			if env.Type == (battle.EventBattleFinished{}).EventType() {
				return
			}

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
