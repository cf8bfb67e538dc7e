package sqlite

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a GORM *DB backed by SQLite. Writers are serialised through a
// single connection; transactions start with BEGIN IMMEDIATE so the row
// checks inside a battle transaction see a stable snapshot.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func withPragmas(path string) string {
	const opts = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=1"
	if strings.Contains(path, "?") {
		return path + "&" + opts
	}
	return path + "?" + opts
}
