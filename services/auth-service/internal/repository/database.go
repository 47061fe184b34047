package repository

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DialectorOpener returns a gorm.Dialector for a DSN.
type DialectorOpener = func(dsn string) gorm.Dialector

var dialectors = map[string]DialectorOpener{
	"postgres": postgres.Open,
	"sqlite":   sqlite.Open,
}

// OpenGorm opens a relational connection for driver ("postgres" or "sqlite").
// SQL logs go through logger at warn level; missing rows are not logged.
func OpenGorm(logger *zerolog.Logger, driver, dsn string) (*gorm.DB, error) {
	open, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log.New(logger, "", 0), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// in-memory databases exist per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}
