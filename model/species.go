package model

// Species is read-only reference data for a creature kind. ID is the
// external species id and is not auto-incremented.
type Species struct {
	ID               int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name             string `gorm:"size:64;not null" json:"name"`
	BaseHP           int    `gorm:"not null" json:"base_hp"`
	BaseAttack       int    `gorm:"not null" json:"base_attack"`
	BaseDefense      int    `gorm:"not null" json:"base_defense"`
	BaseSpAttack     int    `gorm:"not null" json:"base_sp_attack"`
	BaseSpDefense    int    `gorm:"not null" json:"base_sp_defense"`
	BaseSpeed        int    `gorm:"not null" json:"base_speed"`
	Type1            string `gorm:"size:16;not null" json:"type1"`
	Type2            string `gorm:"size:16" json:"type2"` // empty = single type
	EvolutionChainID *int64 `gorm:"index:idx_species_chain" json:"evolution_chain_id"`
	EvolutionStage   *int   `json:"evolution_stage"`
}

// Move is read-only move reference data.
type Move struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Power       *int   `json:"power"`
	PP          *int   `json:"pp"`
	Accuracy    *int   `json:"accuracy"`
	Type        string `gorm:"size:16;not null" json:"type"`
	DamageClass string `gorm:"size:16;not null" json:"damage_class"` // physical | special | status
	Description string `gorm:"type:text" json:"description"`
}

// SpeciesMove is one entry of a species' learnable move pool.
type SpeciesMove struct {
	SpeciesID int64 `gorm:"primaryKey;autoIncrement:false" json:"species_id"`
	MoveID    int64 `gorm:"primaryKey;autoIncrement:false" json:"move_id"`
}

// TypeEffectiveness is one cell of the type chart.
type TypeEffectiveness struct {
	AttackType string  `gorm:"primaryKey;size:16" json:"attack_type"`
	DefendType string  `gorm:"primaryKey;size:16" json:"defend_type"`
	Multiplier float64 `gorm:"not null" json:"multiplier"`
}

func (TypeEffectiveness) TableName() string { return "type_effectiveness" }
