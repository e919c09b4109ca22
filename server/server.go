package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/echocheck/echocheck/server/auth"
	"github.com/echocheck/echocheck/server/gstorage"
	"github.com/echocheck/echocheck/server/logger"
	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/sos"
	"github.com/echocheck/echocheck/server/twilio"
	"github.com/echocheck/echocheck/server/watchdog"
	"github.com/echocheck/echocheck/server/work"
	"github.com/echocheck/echocheck/shared"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.EchocheckTokenClaims
	ErrorMsg string
}

var logg = logger.NewLogger()

// requestHandler carries the collaborators every route needs - constructed
// once in Start & injected, no ambient lookups.
type requestHandler struct {
	jwtSecret   string
	validate    *validator.Validate
	broadcaster *sos.Broadcaster
}

func Start(config *shared.ServerConfig, devMode bool) {
	configDir := configDirectory(devMode)

	var gStorageClient *gstorage.GStorage
	backupEnabled := config.Google.Storage.EnableSqliteBackupAndSync == true
	if backupEnabled {
		var err error
		gStorageClient, err = gstorage.NewGStorage(
			config.Google.ApplicationCredentials, config.Google.Storage.Prefix)
		fatalOnError(err)

		if err := restoreDatabaseIfMissing(gStorageClient, config, configDir); err != nil {
			logg.Warnf("unable to restore db backup: %v", err)
		}
	}

	fatalOnError(models.AutoMigrate(config.Sqlite.PassPhrase, configDir))

	validate := validator.New()
	fatalOnError(RegisterValidators(validate))

	twilioClient := twilio.NewClient(config.Twilio, false)

	workerPool := work.NewWorkerAdapter(config.Echocheck.Cron.TimeZone)
	registerJobHandlers(workerPool, gStorageClient, config, configDir)
	enqueueJobs(workerPool, config)

	if config.Echocheck.Watchdog.Enabled == true {
		wd, err := watchdog.NewWatchdog(workerPool, twilioClient, config.Echocheck.Watchdog.CronSchedule)
		fatalOnError(err)
		fatalOnError(wd.Schedule())
	}

	handler := &requestHandler{
		jwtSecret:   config.Echocheck.JwtSecret,
		validate:    validate,
		broadcaster: sos.NewBroadcaster(twilioClient),
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware, handler.initialContextMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", handler.healthCheck).Methods("GET")
	api.HandleFunc("/register", handler.register).Methods("POST")
	api.HandleFunc("/login", handler.logIn).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(handler.protectedRouteMiddleware)
	protected.HandleFunc("/contacts", handler.listContacts).Methods("GET")
	protected.HandleFunc("/contacts", handler.addContact).Methods("POST")
	protected.HandleFunc("/contacts/{id}", handler.deleteContact).Methods("DELETE")
	protected.HandleFunc("/trip", handler.createTrip).Methods("POST")
	protected.HandleFunc("/trip/active", handler.getActiveTrip).Methods("GET")
	protected.HandleFunc("/checkin", handler.checkIn).Methods("POST")
	protected.HandleFunc("/scan_missed_checks", handler.scanMissedChecks).Methods("GET")
	protected.HandleFunc("/sos", handler.triggerSos).Methods("POST")

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%v", config.Echocheck.Listener.Port),
		Handler:      router,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	workerPool.Start()
	go serve(srv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cleanup(workerPool, srv, backupEnabled, gStorageClient, config, configDir)
}
