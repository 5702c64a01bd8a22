package sqlite

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const SqliteInMemoryPath = "file::memory:?cache=shared"

func NewSqlite(path string) gorm.Dialector {
	return sqlite.Open(path)
}

// NewGormSqliteFromSqlite opens a single-connection sqlite database. sqlite only
// allows one writer, so serializing through one connection keeps transactions
// from failing with "database is locked".
func NewGormSqliteFromSqlite(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDb.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	}
	for _, pragma := range pragmas {
		if res := db.Exec(pragma); res.Error != nil {
			return nil, fmt.Errorf("failed to apply '%s': %w", pragma, res.Error)
		}
	}
	return db, nil
}

// AutoMigrate creates the tables for models with every numeric column declared as TEXT.
// A NUMERIC column in sqlite converts decimal strings to 8-byte floats on insert; TEXT
// keeps the exact digits that decimal.Decimal writes.
func AutoMigrate(db *gorm.DB, models ...interface{}) error {
	for _, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("failed to parse model %T: %w", model, err)
		}
		for _, field := range stmt.Schema.Fields {
			if strings.HasPrefix(strings.ToLower(string(field.DataType)), "numeric") {
				field.DataType = "text"
			}
		}
	}
	return db.AutoMigrate(models...)
}
