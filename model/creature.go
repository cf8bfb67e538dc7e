package model

import "time"

// RosterSize is the number of active roster slots, numbered from 1.
const RosterSize = 6

// Creature is a user's owned individual of a species.
type Creature struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index:idx_creature_user;not null" json:"user_id"`
	SpeciesID  int64     `gorm:"not null" json:"species_id"`
	Level      int       `gorm:"default:1;not null" json:"level"`
	Exp        int       `gorm:"default:0;not null" json:"exp"`
	RosterSlot int       `gorm:"default:0;not null" json:"roster_slot"` // 0 = benched, 1-6 active
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OnRoster reports whether the creature holds an active roster slot.
func (c *Creature) OnRoster() bool {
	return c.RosterSlot >= 1 && c.RosterSlot <= RosterSize
}
