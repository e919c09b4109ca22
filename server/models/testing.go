package models

import (
	"log"
	"os"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// InitializeTestDb points the package at a fresh in-memory database,
// migrated & seeded. Tests call this instead of AutoMigrate.
func InitializeTestDb() {
	var err error

	db, err = gorm.Open(sqliteEncrypt.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{LogLevel: gormLogger.Silent, IgnoreRecordNotFoundError: true},
		),
	})
	if err != nil {
		logg.Panic(err)
	}

	// cache=shared keeps the same database across pooled connections, so
	// wipe whatever a previous test in this process left behind.
	db.Migrator().DropTable(
		&JobStatus{}, &Job{},
		&User{}, &Contact{},
		&Trip{}, &CheckIn{}, &SosEvent{},
	)

	err = db.AutoMigrate(
		&JobStatus{}, &Job{},
		&User{}, &Contact{},
		&Trip{}, &CheckIn{}, &SosEvent{},
	)
	if err != nil {
		logg.Panic(err)
	}

	populateDBWithSeedData()
}
