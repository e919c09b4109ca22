package server

import (
	"github.com/echocheck/echocheck/server/gstorage"
	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/work"
	"github.com/echocheck/echocheck/shared"
	"github.com/echocheck/echocheck/utils"
)

const backupJobName = "backupDatabase"

func registerJobHandlers(workerPool *work.WorkerPoolAdapter, gStorageClient *gstorage.GStorage, config *shared.ServerConfig, configDir string) {
	if gStorageClient == nil {
		return
	}

	workerPool.Register(backupJobName, func(map[string]interface{}) error {
		return backupDatabase(gStorageClient, config, configDir)
	})
}

func enqueueJobs(workerPool *work.WorkerPoolAdapter, config *shared.ServerConfig) {
	if config.Google.Storage.EnableSqliteBackupAndSync != true {
		return
	}

	workerPool.PeriodicallyPerform(config.Google.Storage.SqliteBackupSchedule, work.JobParams{
		Name:    backupJobName,
		Handler: backupJobName,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
}

// backupDatabase pushes the encrypted sqlite file to the configured bucket.
func backupDatabase(gStorageClient *gstorage.GStorage, config *shared.ServerConfig, configDir string) error {
	dbFilePath, err := models.DbFilePath(configDir)
	if err != nil {
		return err
	}

	return gStorageClient.UploadFile(config.Google.Storage.Bucket, dbFilePath)
}

// restoreDatabaseIfMissing pulls the last backup down before the db opens,
// so a fresh deployment starts from the synced copy rather than empty.
func restoreDatabaseIfMissing(gStorageClient *gstorage.GStorage, config *shared.ServerConfig, configDir string) error {
	dbFilePath, err := models.DbFilePath(configDir)
	if err != nil {
		return err
	}

	if utils.FileExist(dbFilePath) {
		return nil
	}

	err = gStorageClient.DownloadFile(config.Google.Storage.Bucket, models.DB_NAME, dbFilePath)
	if err == gstorage.ErrObjectNotExist {
		logg.Info("no db backup found, starting fresh")
		return nil
	}

	return err
}
