package arena

import (
	"context"
	"encoding/json"

	"github.com/studymon/server/game/battle"
	"go.uber.org/zap"
)

// envelope is the wire shape of a published battle event.
type envelope struct {
	Type string       `json:"type"`
	Data battle.Event `json:"data"`
}

// publish sends ev on the battle's channel. Delivery is best effort; the
// committed state is the source of truth.
func (s *Service) publish(ctx context.Context, battleID int64, ev battle.Event) {
	if s.pubsub == nil {
		return
	}
	payload, err := json.Marshal(envelope{Type: ev.EventType(), Data: ev})
	if err != nil {
		s.logger.Error("marshal battle event", zap.Error(err))
		return
	}
	if err := s.pubsub.Publish(ctx, battle.Channel(battleID), string(payload)); err != nil {
		s.logger.Warn("publish battle event failed",
			zap.Int64("battle_id", battleID),
			zap.String("type", ev.EventType()),
			zap.Error(err))
	}
}
