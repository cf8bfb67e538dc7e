package model

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// allModels lists every model to be auto-migrated.
var allModels = []interface{}{
	&User{},
	&Species{},
	&Move{},
	&SpeciesMove{},
	&TypeEffectiveness{},
	&Creature{},
	&Battle{},
	&BattleMove{},
	&BattleReservation{},
	&VictoryLedger{},
	&AuditLog{},
}

// AutoMigrate creates or updates all tables in the given database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}

// IsDuplicate reports whether err is a unique/primary key violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
