package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/model"
	"gorm.io/gorm"
)

// CreatureHandler serves creature progression views.
type CreatureHandler struct {
	db      *gorm.DB
	catalog *catalog.Catalog
}

// NewCreatureHandler creates a CreatureHandler.
func NewCreatureHandler(db *gorm.DB) *CreatureHandler {
	return &CreatureHandler{db: db, catalog: catalog.New(db)}
}

type creatureView struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	SpeciesID   int64        `json:"species_id"`
	SpeciesName string       `json:"species_name"`
	Type1       string       `json:"type1"`
	Type2       string       `json:"type2,omitempty"`
	Level       int          `json:"level"`
	Exp         int          `json:"exp"`
	RosterSlot  int          `json:"roster_slot"`
	Stats       battle.Stats `json:"base_stats"`
	BattleID    *int64       `json:"battle_id,omitempty"`
}

// Get handles GET /api/creatures/:id.
func (h *CreatureHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cr, err := h.catalog.Creature(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	sp, err := h.catalog.Species(ctx, cr.SpeciesID)
	if err != nil {
		writeError(c, err)
		return
	}

	view := creatureView{
		ID:          cr.ID,
		UserID:      cr.UserID,
		SpeciesID:   sp.ID,
		SpeciesName: sp.Name,
		Type1:       sp.Type1,
		Type2:       sp.Type2,
		Level:       cr.Level,
		Exp:         cr.Exp,
		RosterSlot:  cr.RosterSlot,
		Stats:       catalog.Combatant(sp, 0).Stats,
	}
	var reservations []model.BattleReservation
	if err := h.db.WithContext(ctx).Where("creature_id = ?", cr.ID).Limit(1).Find(&reservations).Error; err != nil {
		writeError(c, battle.Wrap(battle.CodeUnavailable, "load reservation", err))
		return
	}
	if len(reservations) == 1 {
		view.BattleID = &reservations[0].BattleID
	}
	c.JSON(http.StatusOK, view)
}
