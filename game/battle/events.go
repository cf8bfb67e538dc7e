package battle

import "fmt"

// Event is published on a battle's channel after each committed change.
type Event interface {
	EventType() string
}

// Channel returns the pub/sub channel name for battle id.
func Channel(battleID int64) string {
	return fmt.Sprintf("battle:%d", battleID)
}

// MoveView is a kit slot as exposed to clients.
type MoveView struct {
	MoveID    int64    `json:"move_id"`
	Name      string   `json:"name"`
	Power     *int     `json:"power"`
	PP        int      `json:"pp"`
	Category  Category `json:"category"`
	Type      string   `json:"type"`
	Slot      int      `json:"slot"`
	CurrentPP int      `json:"current_pp"`
}

// ViewKit converts kit slots into client views.
func ViewKit(kit []Slot, defaultPP int) []MoveView {
	out := make([]MoveView, len(kit))
	for i, s := range kit {
		out[i] = MoveView{
			MoveID:    s.Move.ID,
			Name:      s.Move.Name,
			Power:     s.Move.Power,
			PP:        s.Move.MaxPP(defaultPP),
			Category:  s.Move.Category,
			Type:      s.Move.Type,
			Slot:      s.Slot,
			CurrentPP: s.CurrentPP,
		}
	}
	return out
}

type EventBattleCreated struct {
	BattleID            int64      `json:"battle_id"`
	CreatureAID         int64      `json:"creature_a_id"`
	CreatureBID         int64      `json:"creature_b_id"`
	CreatureAHP         int        `json:"creature_a_hp"`
	CreatureBHP         int        `json:"creature_b_hp"`
	FirstTurnCreatureID int64      `json:"first_turn_creature_id"`
	CreatureAMoves      []MoveView `json:"creature_a_moves"`
	CreatureBMoves      []MoveView `json:"creature_b_moves"`
}

func (EventBattleCreated) EventType() string { return "battle_created" }

type EventAttackResolved struct {
	BattleID      int64   `json:"battle_id"`
	AttackerID    int64   `json:"attacker_creature_id"`
	DefenderID    int64   `json:"defender_creature_id"`
	MoveID        int64   `json:"move_id"`
	Damage        int     `json:"damage"`
	STAB          float64 `json:"stab"`
	Effectiveness float64 `json:"effectiveness"`
	RemainingPP   int     `json:"remaining_pp"`
	CreatureAHP   int     `json:"creature_a_hp"`
	CreatureBHP   int     `json:"creature_b_hp"`
}

func (EventAttackResolved) EventType() string { return "attack_resolved" }

type EventBattleFinished struct {
	BattleID         int64  `json:"battle_id"`
	WinnerCreatureID *int64 `json:"winner_creature_id,omitempty"`
	WinnerUserID     *int64 `json:"winner_user_id,omitempty"`
	Reason           string `json:"reason"` // "knockout" | "idle_timeout"
}

func (EventBattleFinished) EventType() string { return "battle_finished" }

const (
	ReasonKnockout    = "knockout"
	ReasonIdleTimeout = "idle_timeout"
)
