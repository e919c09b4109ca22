package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/echocheck/echocheck/server/logger"
	"github.com/echocheck/echocheck/utils"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "echocheck.db"

var logg = logger.NewLogger()
var db *gorm.DB

// AutoMigrate opens the encrypted sqlite db, migrates the schema
// & inserts seed data.
func AutoMigrate(passPhrase string, dbRootDir string) error {
	err := openDB(passPhrase, dbRootDir)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&JobStatus{}, &Job{},
		&User{}, &Contact{},
		&Trip{}, &CheckIn{}, &SosEvent{},
	)
	if err != nil {
		return err
	}

	populateDBWithSeedData()

	return nil
}

// DbFilePath returns the path of the sqlite file under dbRootDir,
// creating the enclosing directory when missing.
func DbFilePath(dbRootDir string) (string, error) {
	dbDir, err := dbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dbDir, DB_NAME), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDB(passPhrase string, dbRootDir string) error {
	dbDSNVal, err := dbDSN(passPhrase, dbRootDir)
	if err != nil {
		return fmt.Errorf("failed to set sqlite DSN: %v", err)
	}

	db, err = gorm.Open(sqliteEncrypt.Open(dbDSNVal), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	return nil
}

func populateDBWithSeedData() {
	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'JobStatus'")
		db.Create(&[]JobStatus{
			{Name: ENQUEUED_JOB}, {Name: IN_PROGRESS_JOB},
			{Name: SUCCESSFUL_JOB}, {Name: DEAD_JOB}, {Name: SCHEDULED_JOB},
		})
	}
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbFilePath, err := DbFilePath(dbRootDir)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbFilePath,
		passPhrase,
	), nil
}

func dbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}
