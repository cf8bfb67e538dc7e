package battle

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Status is the lifecycle state of a battle session.
type Status string

const (
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

const eventFinish = "finish"

// Participant is one side of a session.
type Participant struct {
	CreatureID int64
	UserID     int64
	Combatant  Combatant
	HP         int
	MaxHP      int
	Kit        []Slot
}

// NewParticipant returns a participant at full HP. A base HP below 1 is
// raised to 1 so the side can still be knocked out.
func NewParticipant(creatureID, userID int64, c Combatant, kit []Slot) Participant {
	hp := c.Stats.HP
	if hp < 1 {
		hp = 1
	}
	return Participant{
		CreatureID: creatureID,
		UserID:     userID,
		Combatant:  c,
		HP:         hp,
		MaxHP:      hp,
		Kit:        kit,
	}
}

func (p *Participant) slot(moveID int64) *Slot {
	for i := range p.Kit {
		if p.Kit[i].Move.ID == moveID {
			return &p.Kit[i]
		}
	}
	return nil
}

// AttackResult is what one successful Attack produced.
type AttackResult struct {
	AttackerID  int64
	DefenderID  int64
	MoveID      int64
	Slot        int
	RemainingPP int
	Damage      DamageResult
	DefenderHP  int
	HPA         int
	HPB         int
	Finished    bool
	// Winner ids are set only when Finished.
	WinnerCreatureID int64
	WinnerUserID     int64
}

// Session is the in-memory state machine of one battle. It is restored from
// storage per request and is not safe for concurrent use; callers serialise
// access through a storage transaction.
type Session struct {
	ID                  int64
	A                   Participant
	B                   Participant
	FirstTurnCreatureID int64
	WinnerCreatureID    int64
	WinnerUserID        int64

	calc    *Calculator
	machine *fsm.FSM
}

// NewSession builds a session in the given status.
func NewSession(id int64, a, b Participant, firstTurn int64, status Status, calc *Calculator) *Session {
	if status == "" {
		status = StatusOngoing
	}
	return &Session{
		ID:                  id,
		A:                   a,
		B:                   b,
		FirstTurnCreatureID: firstTurn,
		calc:                calc,
		machine: fsm.NewFSM(
			string(status),
			fsm.Events{
				{Name: eventFinish, Src: []string{string(StatusOngoing)}, Dst: string(StatusFinished)},
			},
			fsm.Callbacks{},
		),
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status { return Status(s.machine.Current()) }

// Ongoing reports whether attacks are still accepted.
func (s *Session) Ongoing() bool { return s.machine.Is(string(StatusOngoing)) }

// Participant returns the side holding creatureID.
func (s *Session) Participant(creatureID int64) (*Participant, bool) {
	switch creatureID {
	case s.A.CreatureID:
		return &s.A, true
	case s.B.CreatureID:
		return &s.B, true
	}
	return nil, false
}

// Moves returns a copy of the kit assigned to creatureID.
func (s *Session) Moves(creatureID int64) ([]Slot, error) {
	p, ok := s.Participant(creatureID)
	if !ok {
		return nil, Errorf(CodeNotAParticipant, "creature %d is not in battle %d", creatureID, s.ID)
	}
	out := make([]Slot, len(p.Kit))
	copy(out, p.Kit)
	return out, nil
}

// Attack applies one move. Preconditions are checked in order: the session
// is ongoing, both creatures take part, attacker and defender differ, the
// move is in the attacker's kit, and the slot has PP left.
func (s *Session) Attack(ctx context.Context, attackerID, defenderID, moveID int64, rng Rand) (AttackResult, error) {
	if !s.Ongoing() {
		return AttackResult{}, Errorf(CodeBattleNotOngoing, "battle %d is %s", s.ID, s.Status())
	}
	attacker, ok := s.Participant(attackerID)
	if !ok {
		return AttackResult{}, Errorf(CodeNotAParticipant, "attacker %d is not in battle %d", attackerID, s.ID)
	}
	defender, ok := s.Participant(defenderID)
	if !ok {
		return AttackResult{}, Errorf(CodeNotAParticipant, "defender %d is not in battle %d", defenderID, s.ID)
	}
	if attackerID == defenderID {
		return AttackResult{}, NewError(CodeInvalidArgument, "a creature cannot attack itself")
	}
	slot := attacker.slot(moveID)
	if slot == nil {
		return AttackResult{}, Errorf(CodeMoveNotAssigned, "move %d is not assigned to creature %d", moveID, attackerID)
	}
	if slot.CurrentPP <= 0 {
		return AttackResult{}, Errorf(CodeMovePPExhausted, "move %d has no PP left", moveID)
	}

	dmg := s.calc.Damage(attacker.Combatant, defender.Combatant, slot.Move, rng)

	slot.CurrentPP--
	defender.HP -= dmg.Damage
	if defender.HP < 0 {
		defender.HP = 0
	}

	res := AttackResult{
		AttackerID:  attackerID,
		DefenderID:  defenderID,
		MoveID:      moveID,
		Slot:        slot.Slot,
		RemainingPP: slot.CurrentPP,
		Damage:      dmg,
		DefenderHP:  defender.HP,
	}

	if defender.HP == 0 {
		if err := s.machine.Event(ctx, eventFinish); err != nil {
			return AttackResult{}, fmt.Errorf("battle %d: finish: %w", s.ID, err)
		}
		s.WinnerCreatureID = attacker.CreatureID
		s.WinnerUserID = attacker.UserID
		res.Finished = true
		res.WinnerCreatureID = s.WinnerCreatureID
		res.WinnerUserID = s.WinnerUserID
	}
	res.HPA, res.HPB = s.A.HP, s.B.HP
	return res, nil
}

// Abandon finishes an ongoing session without a winner.
func (s *Session) Abandon(ctx context.Context) error {
	if !s.Ongoing() {
		return Errorf(CodeBattleNotOngoing, "battle %d is %s", s.ID, s.Status())
	}
	if err := s.machine.Event(ctx, eventFinish); err != nil {
		return fmt.Errorf("battle %d: finish: %w", s.ID, err)
	}
	return nil
}
